// Package credentials keeps the database connection string out of config
// files: it lives in the OS keyring, or in a private file where no keyring
// is available (CI, containers, Codespaces).
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "pricecrawl"
	// FallbackDir is the directory for file-based storage, relative to home
	FallbackDir = ".pricecrawl/credentials"

	databaseURLKey = "database-url"
)

// ErrNotFound means nothing is stored under the key
var ErrNotFound = errors.New("credential not found")

// Vault stores secrets under one keyring service
type Vault struct {
	service string
	dir     string

	once     sync.Once
	fileOnly bool
	// unavailable reports whether the keyring is unusable
	unavailable func() bool
}

// New creates a Vault using the keyring service and dir as file fallback
func New(service, dir string) *Vault {
	v := &Vault{service: service, dir: dir}
	v.unavailable = v.keyringUnavailable
	return v
}

// Default is the vault used by the CLI
func Default() (*Vault, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	return New(KeyringService, filepath.Join(home, FallbackDir)), nil
}

func (v *Vault) keyringUnavailable() bool {
	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		return true
	}
	const testKey = "_test_keyring_access_"
	if err := keyring.Set(v.service, testKey, "test"); err != nil {
		return true
	}
	_ = keyring.Delete(v.service, testKey)
	return false
}

func (v *Vault) useFile() bool {
	v.once.Do(func() { v.fileOnly = v.unavailable() })
	return v.fileOnly
}

// Backend names where secrets go: "keyring" or "file"
func (v *Vault) Backend() string {
	if v.useFile() {
		return "file"
	}
	return "keyring"
}

func (v *Vault) path(key string) (string, error) {
	if err := os.MkdirAll(v.dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(v.dir, key), nil
}

// Set stores value under key
func (v *Vault) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}

	if v.useFile() {
		path, err := v.path(key)
		if err != nil {
			return fmt.Errorf("failed to get credential path: %w", err)
		}
		if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
			return fmt.Errorf("failed to save credential file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(v.service, key, value); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

// Get returns the value under key or ErrNotFound
func (v *Vault) Get(key string) (string, error) {
	if v.useFile() {
		path, err := v.path(key)
		if err != nil {
			return "", fmt.Errorf("failed to get credential path: %w", err)
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("failed to read credential file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	value, err := keyring.Get(v.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (v *Vault) Delete(key string) error {
	if v.useFile() {
		path, err := v.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete credential file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(v.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// SetDatabaseURL stores the connection string used when none is configured
func (v *Vault) SetDatabaseURL(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("database url cannot be empty")
	}
	return v.Set(databaseURLKey, dsn)
}

// DatabaseURL returns the stored connection string or ErrNotFound
func (v *Vault) DatabaseURL() (string, error) {
	return v.Get(databaseURLKey)
}

// ClearDatabaseURL forgets the stored connection string
func (v *Vault) ClearDatabaseURL() error {
	return v.Delete(databaseURLKey)
}
