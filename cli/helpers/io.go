package helpers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrFileExists is returned when a write would clobber an existing file.
var ErrFileExists = errors.New("file already exists")

// WriteFile writes data under fs, creating parent directories. Existing files
// are only replaced when overwrite is set.
func WriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode, overwrite bool) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if !overwrite {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if exists {
			return fmt.Errorf("%s: %w", path, ErrFileExists)
		}
	}
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := afero.WriteFile(fs, path, data, perm); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// ReadTrimmed reads a small text file and strips surrounding whitespace.
func ReadTrimmed(fs afero.Fs, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
