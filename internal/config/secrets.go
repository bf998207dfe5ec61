package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSecretsDir is where Docker mounts secrets.
const DefaultSecretsDir = "/run/secrets"

// ErrSecretNotFound is returned when the secret file does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// SecretReader reads Docker secrets from a directory.
// There is no fallback to environment variables.
type SecretReader struct {
	Dir string
}

// Read returns the trimmed content of the named secret file.
func (r SecretReader) Read(name string) (string, error) {
	dir := r.Dir
	if dir == "" {
		dir = DefaultSecretsDir
	}
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

// ReadOptional is like Read but returns an empty string for a missing file.
func (r SecretReader) ReadOptional(name string) (string, error) {
	s, err := r.Read(name)
	if errors.Is(err, ErrSecretNotFound) {
		return "", nil
	}
	return s, err
}
