package ultraloq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ulock-home/ulockd/internal/session"
)

// Authenticator implements the vendor's two-step login: an app token
// from the token endpoint, then a credentials login that proves the
// account. Subsequent API calls authenticate with the app token.
type Authenticator struct {
	tokenURL   string
	loginURL   string
	httpClient *http.Client
}

func NewAuthenticator(cfg Config) *Authenticator {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Authenticator{
		tokenURL:   cfg.TokenURL,
		loginURL:   base + "/app/user/login",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *Authenticator) Login(ctx context.Context, creds session.Credentials, installID string) (session.Session, error) {
	token, err := a.fetchAppToken(ctx, installID)
	if err != nil {
		return session.Session{}, err
	}

	userUUID, err := a.login(ctx, creds, token.Token)
	if err != nil {
		return session.Session{}, err
	}

	baseURL := strings.TrimRight(token.URLs.Utec, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return session.Session{
		Token:    token.Token,
		BaseURL:  baseURL,
		UserUUID: userUUID,
	}, nil
}

func (a *Authenticator) fetchAppToken(ctx context.Context, installID string) (wireTokenData, error) {
	payload, err := json.Marshal(map[string]string{
		"appid":    appID,
		"clientid": clientID,
		"uuid":     installID,
		"version":  appVersion,
		"timezone": timezone,
	})
	if err != nil {
		return wireTokenData{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(string(payload)))
	if err != nil {
		return wireTokenData{}, fmt.Errorf("build token request: %w", err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	var data wireTokenData
	if err := a.doEnvelope(req, &data); err != nil {
		return wireTokenData{}, fmt.Errorf("token request: %w", err)
	}
	if data.Token == "" || data.URLs.Utec == "" {
		return wireTokenData{}, fmt.Errorf("token response missing token or base url")
	}
	return data, nil
}

func (a *Authenticator) login(ctx context.Context, creds session.Credentials, token string) (string, error) {
	credsJSON, err := json.Marshal(map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	})
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("data", string(credsJSON))
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	var data wireLoginData
	if err := a.doEnvelope(req, &data); err != nil {
		var apiErr APIError
		if isAuthError(err, &apiErr) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("login request: %w", err)
	}
	return data.UUID, nil
}

func (a *Authenticator) doEnvelope(req *http.Request, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Code != http.StatusOK {
		return APIError{Code: envelope.Code, Description: envelope.Description}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
