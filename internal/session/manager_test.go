package session

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type memoryStore struct {
	data map[string][]byte
}

func (m *memoryStore) Load(_ context.Context, provider string) ([]byte, error) {
	if data, ok := m.data[provider]; ok {
		return data, nil
	}
	return nil, ErrBlobNotFound
}

func (m *memoryStore) Save(_ context.Context, provider string, data []byte) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[provider] = data
	return nil
}

type fakeAuth struct {
	logins  atomic.Int64
	fail    bool
	session Session
}

func (f *fakeAuth) Login(_ context.Context, creds Credentials, installID string) (Session, error) {
	f.logins.Add(1)
	if f.fail {
		return Session{}, fmt.Errorf("cloud said no")
	}
	if creds.Email == "" || creds.Password == "" || installID == "" {
		return Session{}, fmt.Errorf("incomplete login request")
	}
	return f.session, nil
}

func testBootstrap() Bootstrap {
	return Bootstrap{Email: "user@example.com", Password: "hunter2", InstallID: "install-1"}
}

func TestManagerLazyLogin(t *testing.T) {
	auth := &fakeAuth{session: Session{Token: "tok-1", BaseURL: "https://cloud.example.com", UserUUID: "u-1"}}
	statePath := filepath.Join(t.TempDir(), "state.json")

	manager, err := NewManagerFromBootstrap(
		Declaration{Provider: "testprov", StatePath: statePath},
		auth, testBootstrap(), &memoryStore{},
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if auth.logins.Load() != 0 {
		t.Fatalf("construction must not log in")
	}

	sess, err := manager.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Token != "tok-1" || sess.UserUUID != "u-1" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// Cached on the second call.
	if _, err := manager.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got := auth.logins.Load(); got != 1 {
		t.Fatalf("expected one login, got %d", got)
	}

	// The session survives on disk, password excluded.
	state, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if state.Token != "tok-1" || state.Email != "user@example.com" {
		t.Fatalf("unexpected persisted state: %+v", state)
	}
	raw, _ := json.Marshal(state)
	if strings.Contains(string(raw), "hunter2") {
		t.Fatalf("password leaked into state: %s", raw)
	}
}

func TestManagerReusesPersistedState(t *testing.T) {
	auth := &fakeAuth{session: Session{Token: "tok-1"}}
	statePath := filepath.Join(t.TempDir(), "state.json")
	store := &memoryStore{}
	decl := Declaration{Provider: "testprov", StatePath: statePath}

	first, err := NewManagerFromBootstrap(decl, auth, testBootstrap(), store)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := first.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}

	// A restarted manager picks up the cached session without a login.
	second, err := NewManagerFromBootstrap(decl, auth, testBootstrap(), store)
	if err != nil {
		t.Fatalf("restart manager: %v", err)
	}
	sess, err := second.Session(context.Background())
	if err != nil {
		t.Fatalf("Session after restart: %v", err)
	}
	if sess.Token != "tok-1" {
		t.Fatalf("expected cached token, got %+v", sess)
	}
	if got := auth.logins.Load(); got != 1 {
		t.Fatalf("expected no extra login, got %d", got)
	}
}

func TestManagerRestoresFromBlob(t *testing.T) {
	auth := &fakeAuth{session: Session{Token: "fresh"}}
	store := &memoryStore{}
	blobState := State{
		SchemaVersion: SchemaVersion,
		Email:         "user@example.com",
		InstallID:     "install-1",
		Token:         "blob-token",
	}
	data, _ := json.Marshal(blobState)
	_ = store.Save(context.Background(), "testprov", data)

	// Fresh host: no local state file, only the blob mirror.
	manager, err := NewManagerFromBootstrap(
		Declaration{Provider: "testprov", StatePath: filepath.Join(t.TempDir(), "state.json")},
		auth, testBootstrap(), store,
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	sess, err := manager.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Token != "blob-token" {
		t.Fatalf("expected blob token, got %+v", sess)
	}
	if auth.logins.Load() != 0 {
		t.Fatalf("blob restore must not log in")
	}
}

func TestManagerAccountChangeDiscardsState(t *testing.T) {
	auth := &fakeAuth{session: Session{Token: "new-token"}}
	statePath := filepath.Join(t.TempDir(), "state.json")
	store := &memoryStore{}
	decl := Declaration{Provider: "testprov", StatePath: statePath}

	first, err := NewManagerFromBootstrap(decl, auth, testBootstrap(), store)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := first.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}

	other := Bootstrap{Email: "other@example.com", Password: "pw2", InstallID: "install-2"}
	second, err := NewManagerFromBootstrap(decl, auth, other, store)
	if err != nil {
		t.Fatalf("new manager for other account: %v", err)
	}
	sess, err := second.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Token != "new-token" {
		t.Fatalf("expected fresh login for new account, got %+v", sess)
	}
}

func TestManagerInvalidate(t *testing.T) {
	auth := &fakeAuth{session: Session{Token: "tok-1"}}
	manager, err := NewManagerFromBootstrap(
		Declaration{Provider: "testprov", StatePath: filepath.Join(t.TempDir(), "state.json")},
		auth, testBootstrap(), &memoryStore{},
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := manager.Session(context.Background()); err != nil {
		t.Fatalf("Session: %v", err)
	}

	auth.session = Session{Token: "tok-2"}
	manager.Invalidate(context.Background())

	sess, err := manager.Session(context.Background())
	if err != nil {
		t.Fatalf("Session after invalidate: %v", err)
	}
	if sess.Token == "" {
		t.Fatalf("expected a token after re-login")
	}
}

func TestManagerLoginFailure(t *testing.T) {
	auth := &fakeAuth{fail: true}
	manager, err := NewManagerFromBootstrap(
		Declaration{Provider: "testprov", StatePath: filepath.Join(t.TempDir(), "state.json")},
		auth, testBootstrap(), &memoryStore{},
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := manager.Session(context.Background()); err == nil {
		t.Fatalf("expected login failure")
	}
}
