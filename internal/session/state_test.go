package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	state := State{
		SchemaVersion: SchemaVersion,
		Email:         "user@example.com",
		InstallID:     "install-1",
		Token:         "app-token",
		BaseURL:       "https://cloud.example.com",
		UserUUID:      "user-uuid",
		ObtainedAt:    1700000000,
	}
	if err := WriteState(path, state); err != nil {
		t.Fatalf("WriteState: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("state file permissions: %v", info.Mode().Perm())
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded != state {
		t.Fatalf("state mismatch: %+v != %+v", loaded, state)
	}
}

func TestLoadStateMissing(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}

func TestStateValidate(t *testing.T) {
	if _, err := DecodeState([]byte(`{"schema_version":99,"email":"a@b.c","install_id":"x"}`)); err == nil {
		t.Fatalf("expected schema version error")
	}
	if _, err := DecodeState([]byte(`{"schema_version":1,"install_id":"x"}`)); err == nil {
		t.Fatalf("expected missing email error")
	}
	if _, err := DecodeState([]byte(`{"schema_version":1,"email":"a@b.c"}`)); err == nil {
		t.Fatalf("expected missing install_id error")
	}
}

func TestBootstrapValidate(t *testing.T) {
	if _, err := DecodeBootstrap([]byte(`{"email":"a@b.c","password":"pw"}`)); err != nil {
		t.Fatalf("valid bootstrap rejected: %v", err)
	}
	_, err := DecodeBootstrap([]byte(`{"email":"a@b.c"}`))
	if err == nil || !strings.Contains(err.Error(), "password") {
		t.Fatalf("expected missing password error, got %v", err)
	}
}
