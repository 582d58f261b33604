package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const DefaultRefreshInterval = 6 * time.Hour

// Session is an authenticated cloud session. The token must precede
// any device or lock call.
type Session struct {
	Token    string
	BaseURL  string
	UserUUID string
}

// Credentials are the account email and password from the bootstrap file.
type Credentials struct {
	Email    string
	Password string
}

// Authenticator performs the vendor login flow and returns a session.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials, installID string) (Session, error)
}

// Declaration names the provider and where its state lives on disk.
type Declaration struct {
	Provider  string
	StatePath string
}

// Manager owns the cloud session: lazy login, scheduled re-auth, and
// persistence of the resulting state locally and to the blob mirror.
type Manager struct {
	decl      Declaration
	auth      Authenticator
	blobStore BlobStore
	creds     Credentials

	mu            sync.Mutex
	state         State
	loginInFlight bool
}

func NewManager(decl Declaration, auth Authenticator, credentialsPath string, blobStore BlobStore) (*Manager, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("credentials path is required")
	}
	bootstrap, err := LoadBootstrap(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	return NewManagerFromBootstrap(decl, auth, bootstrap, blobStore)
}

// NewManagerFromBootstrap creates a manager from inline credentials (no file needed).
func NewManagerFromBootstrap(decl Declaration, auth Authenticator, bootstrap Bootstrap, blobStore BlobStore) (*Manager, error) {
	if decl.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if decl.StatePath == "" {
		return nil, fmt.Errorf("statePath is required")
	}
	if !filepath.IsAbs(decl.StatePath) {
		return nil, fmt.Errorf("statePath must be absolute")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if err := bootstrap.Validate(); err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	m := &Manager{
		decl:      decl,
		auth:      auth,
		blobStore: blobStore,
		creds:     Credentials{Email: bootstrap.Email, Password: bootstrap.Password},
	}

	state, err := m.loadInitialState(bootstrap)
	if err != nil {
		return nil, err
	}
	m.state = state

	return m, nil
}

func (m *Manager) Start(ctx context.Context) {
	m.StartWithInterval(ctx, DefaultRefreshInterval)
}

// StartWithInterval logs in if no cached session exists and re-runs the
// login flow on the given interval. An interval <= 0 disables the loop.
func (m *Manager) StartWithInterval(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	haveToken := m.state.Token != ""
	m.mu.Unlock()
	if !haveToken {
		m.TriggerRefresh(ctx)
	}

	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = m.refresh(ctx)
			}
		}
	}()
}

// Session returns the cached session, logging in synchronously when none
// is held yet.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	if m.state.Token != "" {
		sess := Session{Token: m.state.Token, BaseURL: m.state.BaseURL, UserUUID: m.state.UserUUID}
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Token == "" {
		return Session{}, fmt.Errorf("session unavailable")
	}
	return Session{Token: m.state.Token, BaseURL: m.state.BaseURL, UserUUID: m.state.UserUUID}, nil
}

// Invalidate drops the cached token after the cloud rejected it and
// schedules a fresh login.
func (m *Manager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	m.state.Token = ""
	m.mu.Unlock()
	tokenValid.WithLabelValues(m.decl.Provider).Set(0)
	m.TriggerRefresh(ctx)
}

func (m *Manager) TriggerRefresh(ctx context.Context) {
	m.mu.Lock()
	if m.loginInFlight {
		m.mu.Unlock()
		return
	}
	m.loginInFlight = true
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.loginInFlight = false
			m.mu.Unlock()
		}()
		_ = m.refresh(ctx)
	}()
}

func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	installID := m.state.InstallID
	m.mu.Unlock()

	sess, err := m.auth.Login(ctx, m.creds, installID)
	if err != nil {
		loginFailure.WithLabelValues(m.decl.Provider).Inc()
		tokenValid.WithLabelValues(m.decl.Provider).Set(0)
		return fmt.Errorf("login: %w", err)
	}

	m.mu.Lock()
	m.state.Token = sess.Token
	m.state.BaseURL = sess.BaseURL
	m.state.UserUUID = sess.UserUUID
	m.state.ObtainedAt = time.Now().Unix()
	state := m.state
	m.mu.Unlock()

	loginSuccess.WithLabelValues(m.decl.Provider).Inc()
	tokenValid.WithLabelValues(m.decl.Provider).Set(1)

	if err := WriteState(m.decl.StatePath, state); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	if err := m.persistBlob(ctx, state); err != nil {
		remotePersistOK.WithLabelValues(m.decl.Provider).Set(0)
		return nil
	}
	remotePersistOK.WithLabelValues(m.decl.Provider).Set(1)
	return nil
}

func (m *Manager) loadInitialState(bootstrap Bootstrap) (State, error) {
	fresh := State{
		SchemaVersion: SchemaVersion,
		Email:         bootstrap.Email,
		InstallID:     bootstrap.InstallID,
	}
	if fresh.InstallID == "" {
		fresh.InstallID = uuid.NewString()
	}

	local, localErr := LoadState(m.decl.StatePath)
	if localErr == nil {
		if err := checkStateFile(m.decl.StatePath); err != nil {
			return State{}, err
		}
		if local.Email == bootstrap.Email {
			return local, nil
		}
		// Account changed: cached session belongs to someone else.
		accountMismatch.WithLabelValues(m.decl.Provider).Inc()
	} else if !errors.Is(localErr, ErrStateNotFound) {
		return State{}, localErr
	}

	blob, blobErr := m.loadFromBlob(context.Background())
	if blobErr == nil && blob.Email == bootstrap.Email {
		if err := WriteState(m.decl.StatePath, blob); err != nil {
			return State{}, err
		}
		return blob, nil
	}
	if blobErr != nil && !errors.Is(blobErr, ErrBlobNotFound) {
		return State{}, blobErr
	}

	if err := WriteState(m.decl.StatePath, fresh); err != nil {
		return State{}, err
	}
	if err := m.persistBlob(context.Background(), fresh); err != nil {
		remotePersistOK.WithLabelValues(m.decl.Provider).Set(0)
	} else {
		remotePersistOK.WithLabelValues(m.decl.Provider).Set(1)
	}
	return fresh, nil
}

func (m *Manager) loadFromBlob(ctx context.Context) (State, error) {
	data, err := m.blobStore.Load(ctx, m.decl.Provider)
	if err != nil {
		return State{}, err
	}
	return DecodeState(data)
}

func (m *Manager) persistBlob(ctx context.Context, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return m.blobStore.Save(ctx, m.decl.Provider, data)
}

func checkStateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0o600 {
		return fmt.Errorf("state file %s must have 0600 permissions", path)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if int(stat.Uid) != os.Geteuid() {
			return fmt.Errorf("state file %s must be owned by uid %d", path, os.Geteuid())
		}
	}
	return nil
}
