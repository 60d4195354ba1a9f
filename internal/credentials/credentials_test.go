package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestVault_Keyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv("CI", "")
	t.Setenv("CODESPACES", "")

	v := New("pricecrawl-test", t.TempDir())
	if v.Backend() != "keyring" {
		t.Fatalf("expected keyring backend, got %s", v.Backend())
	}

	if _, err := v.DatabaseURL(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := v.SetDatabaseURL("postgres://u:p@db/prices"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := v.DatabaseURL()
	if err != nil || got != "postgres://u:p@db/prices" {
		t.Errorf("expected stored url, got %q %v", got, err)
	}
	if err := v.ClearDatabaseURL(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := v.ClearDatabaseURL(); err != nil {
		t.Errorf("clearing twice should succeed: %v", err)
	}
	if _, err := v.DatabaseURL(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestVault_FileFallback(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "creds")
	v := New("pricecrawl-test", dir)
	v.unavailable = func() bool { return true }

	if v.Backend() != "file" {
		t.Fatalf("expected file backend, got %s", v.Backend())
	}
	if err := v.SetDatabaseURL("postgres://localhost/prices"); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, databaseURLKey))
	if err != nil {
		t.Fatalf("expected credential file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	got, err := v.DatabaseURL()
	if err != nil || got != "postgres://localhost/prices" {
		t.Errorf("unexpected url %q %v", got, err)
	}
	if err := v.ClearDatabaseURL(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := v.DatabaseURL(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVault_RejectsEmpty(t *testing.T) {
	v := New("pricecrawl-test", t.TempDir())
	v.unavailable = func() bool { return true }
	if err := v.SetDatabaseURL("  "); err == nil {
		t.Error("expected error for empty url")
	}
}
