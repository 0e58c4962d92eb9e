package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// KeyStore keeps the session key in a file so a conversation survives
// restarts.
type KeyStore struct {
	path string
}

func NewKeyStore(path string) *KeyStore {
	return &KeyStore{path: path}
}

// Load returns the stored key, generating and saving one when none exists.
func (k *KeyStore) Load() (string, error) {
	data, err := os.ReadFile(k.path)
	if err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("keystore: read %q: %w", k.path, err)
	}

	key := uuid.NewString()
	if err := k.Save(key); err != nil {
		return "", err
	}
	return key, nil
}

// Save replaces the stored key atomically.
func (k *KeyStore) Save(key string) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return fmt.Errorf("keystore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(k.path), ".session-*")
	if err != nil {
		return fmt.Errorf("keystore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(key + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), k.path); err != nil {
		return fmt.Errorf("keystore: rename: %w", err)
	}
	return nil
}
