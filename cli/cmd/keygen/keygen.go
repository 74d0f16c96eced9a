package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sigauth/sigauth/cli/helpers"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

const (
	PrivateKeyFile    = "private.key"
	PublicKeyFile     = "public.key"
	AuthorizedKeyFile = "public.key.pub"
)

// Result describes a generated key pair.
type Result struct {
	Dir          string `json:"dir"`
	PublicKeyB64 string `json:"public_key_b64"`
	Fingerprint  string `json:"fingerprint"`
}

// NewKeygenCommand creates the keygen command
func NewKeygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 key pair for signing challenges",
		Long: `Write three files to the output directory:
  private.key     base64 32-byte Ed25519 seed (mode 0600)
  public.key      base64 raw public key, the value register-key expects
  public.key.pub  the same key as an OpenSSH authorized_keys line`,
		Args: cobra.NoArgs,
		RunE: executeKeygenCommand,
	}
	cmd.Flags().String("out", ".", "Directory to write the key files to")
	cmd.Flags().Bool("force", false, "Overwrite existing key files")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

func executeKeygenCommand(cmd *cobra.Command, _ []string) error {
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}
	res, err := Generate(afero.NewOsFs(), rand.Reader, out, force)
	if err != nil {
		return err
	}
	logger.FromContext(cmd.Context()).Debug("Key pair generated", "dir", res.Dir, "fingerprint", res.Fingerprint)
	w := cmd.OutOrStdout()
	if asJSON {
		return helpers.WriteJSON(w, res)
	}
	helpers.Success(w, "Key pair written to %s", res.Dir)
	helpers.Field(w, "public key", res.PublicKeyB64)
	helpers.Field(w, "fingerprint", res.Fingerprint)
	return nil
}

// Generate creates a key pair from random and writes it under dir. Nothing is
// written when any target exists and overwrite is false.
func Generate(fs afero.Fs, random io.Reader, dir string, overwrite bool) (*Result, error) {
	pub, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ssh public key: %w", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(pub)
	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{PrivateKeyFile, []byte(base64.StdEncoding.EncodeToString(priv.Seed()) + "\n"), 0o600},
		{PublicKeyFile, []byte(pubB64 + "\n"), 0o644},
		{AuthorizedKeyFile, ssh.MarshalAuthorizedKey(sshPub), 0o644},
	}
	if !overwrite {
		for _, f := range files {
			path := filepath.Join(dir, f.name)
			exists, err := afero.Exists(fs, path)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", path, err)
			}
			if exists {
				return nil, fmt.Errorf("%s: %w (use --force to replace)", path, helpers.ErrFileExists)
			}
		}
	}
	for _, f := range files {
		if err := helpers.WriteFile(fs, filepath.Join(dir, f.name), f.data, f.perm, true); err != nil {
			return nil, err
		}
	}
	return &Result{Dir: dir, PublicKeyB64: pubB64, Fingerprint: ssh.FingerprintSHA256(sshPub)}, nil
}

// ReadPrivateKey loads a private.key file. Both the 32-byte seed and the
// 64-byte expanded form are accepted.
func ReadPrivateKey(fs afero.Fs, path string) (ed25519.PrivateKey, error) {
	encoded, err := helpers.ReadTrimmed(fs, path)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("private key %s is not valid base64: %w", path, err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("private key %s has %d bytes, want %d", path, len(raw), ed25519.SeedSize)
	}
}

// ReadPublicKey loads a public.key file and returns its base64 text.
func ReadPublicKey(fs afero.Fs, path string) (string, error) {
	encoded, err := helpers.ReadTrimmed(fs, path)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("public key %s is not valid base64: %w", path, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return "", fmt.Errorf("public key %s has %d bytes, want %d", path, len(raw), ed25519.PublicKeySize)
	}
	return encoded, nil
}
