package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIProvider_Load(t *testing.T) {
	t.Run("Should map flag names onto nested config paths", func(t *testing.T) {
		provider := NewCLIProvider(map[string]any{
			"port":      6001,
			"db-driver": "postgres",
			"log-level": "debug",
			"unknown":   "ignored",
		})
		data, err := provider.Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"server":   map[string]any{"port": 6001},
			"database": map[string]any{"driver": "postgres"},
			"runtime":  map[string]any{"log_level": "debug"},
		}, data)
		assert.Equal(t, SourceCLI, provider.Type())
	})

	t.Run("Should return an empty map for nil flags", func(t *testing.T) {
		data, err := NewCLIProvider(nil).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestSetNested(t *testing.T) {
	t.Run("Should report conflicts with leaf values", func(t *testing.T) {
		m := map[string]any{"server": "flat"}
		err := setNested(m, "server.port", 1)
		require.ErrorContains(t, err, "configuration conflict")
	})
}

func TestYAMLProvider_Load(t *testing.T) {
	t.Run("Should treat a missing file as empty", func(t *testing.T) {
		data, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).Load()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Should drop null values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  host: ~\n  port: 8080\nredis:\n  url: ~\n"), 0o600))
		data, err := NewYAMLProvider(path).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"server": map[string]any{"port": 8080}}, data)
	})

	t.Run("Should fail on malformed YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
		_, err := NewYAMLProvider(path).Load()
		require.ErrorContains(t, err, "failed to parse YAML file")
	})
}
