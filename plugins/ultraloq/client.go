package ultraloq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ulock-home/ulockd/internal/rate"
	"github.com/ulock-home/ulockd/internal/session"
)

// Client talks to the Ultraloq cloud API. All calls require the app
// token held by the session manager; a 401-coded envelope invalidates
// the session and triggers a background re-login.
type Client struct {
	cfg        Config
	session    *session.Manager
	httpClient *http.Client

	// Shortened in tests so command verification does not sleep.
	settleDelay time.Duration
}

func NewClient(cfg Config, sess *session.Manager) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &Client{
		cfg:         cfg,
		session:     sess,
		httpClient:  rate.WrapHTTP(RateLimits(), &http.Client{Timeout: cfg.Timeout}),
		settleDelay: defaultSettleDelay,
	}, nil
}

// RateLimits declares the client-side budget for the vendor cloud.
func RateLimits() rate.Declaration {
	return rate.Provider("ultraloq").
		MaxRequestsPer(rate.Minute, 60).
		MaxRequestsPer(rate.Day, 10000)
}

// Addresses lists the account's addresses/locations.
func (c *Client) Addresses(ctx context.Context) ([]Address, error) {
	var addresses []Address
	if err := c.postForm(ctx, "/app/address", nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// ResolveAddress picks the address to scope device calls to. A
// requested id must exist; with no request, a single listed address is
// auto-selected and anything else is an error.
func (c *Client) ResolveAddress(ctx context.Context, requestedID int64) (Address, error) {
	addresses, err := c.Addresses(ctx)
	if err != nil {
		return Address{}, err
	}

	targetID := requestedID
	if targetID == 0 {
		targetID = c.cfg.AddressID
	}

	if targetID == 0 {
		if len(addresses) == 1 {
			return addresses[0], nil
		}
		labels := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			labels = append(labels, fmt.Sprintf("%d (%s)", addr.ID, addr.Name))
		}
		return Address{}, fmt.Errorf("multiple addresses found: %s (set address_id)", strings.Join(labels, ", "))
	}

	for _, addr := range addresses {
		if addr.ID == targetID {
			return addr, nil
		}
	}
	return Address{}, fmt.Errorf("address %d: %w", targetID, ErrAddressNotFound)
}

// Devices lists the raw grouped device entries for an address.
func (c *Client) Devices(ctx context.Context, addressID int64) ([]wireDeviceEntry, error) {
	var entries []wireDeviceEntry
	fields := map[string]string{"data": fmt.Sprintf(`{"address_id":%d}`, addressID)}
	if err := c.postMultipart(ctx, "/app/device/list/address", fields, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Locks flattens the device listing to U-Bolt locks.
func (c *Client) Locks(ctx context.Context, addressID int64) ([]Lock, error) {
	entries, err := c.Devices(ctx, addressID)
	if err != nil {
		return nil, err
	}

	var locks []Lock
	for _, entry := range entries {
		for _, device := range entry.Devices {
			if device.Model != lockModel {
				continue
			}
			locks = append(locks, Lock{
				UUID:    device.UUID,
				Name:    device.Name,
				Model:   device.Model,
				UserUID: device.User.UID,
				EntryID: entry.ID,
			})
		}
	}
	return locks, nil
}

// LockStatus fetches the real-time status of one lock.
func (c *Client) LockStatus(ctx context.Context, uuid string) (LockStatus, error) {
	var status wireStatus
	fields := map[string]string{"data": fmt.Sprintf(`{"uuid":%q}`, uuid)}
	if err := c.postMultipart(ctx, "/app/device/status", fields, &status); err != nil {
		return LockStatus{}, err
	}
	return status.toStatus(), nil
}

// IsOnline checks BLE-bridge and remote reachability for a lock.
func (c *Client) IsOnline(ctx context.Context, uuid string) (OnlineStatus, error) {
	var online wireOnline
	form := url.Values{}
	form.Set("data", fmt.Sprintf(`{"uuid":%q}`, uuid))
	if err := c.postForm(ctx, "/app/device/lock/share/get/isopen", form, &online); err != nil {
		return OnlineStatus{}, err
	}
	return OnlineStatus{BLE: online.BLE == 1, Remote: online.Remote == 1}, nil
}

// Lock bolts the device.
func (c *Client) Lock(ctx context.Context, uuid string, addressID int64) error {
	return c.sendCommand(ctx, uuid, addressID, "lock/lock", true)
}

// Unlock retracts the bolt.
func (c *Client) Unlock(ctx context.Context, uuid string, addressID int64) error {
	return c.sendCommand(ctx, uuid, addressID, "lock/unlock", false)
}

func (c *Client) sendCommand(ctx context.Context, uuid string, addressID int64, topic string, wantLocked bool) error {
	online, err := c.IsOnline(ctx, uuid)
	if err != nil {
		return fmt.Errorf("online precheck: %w", err)
	}
	if !online.IsOnline() {
		return fmt.Errorf("%w (ble=%t remote=%t)", ErrLockOffline, online.BLE, online.Remote)
	}

	userUID, err := c.userUID(ctx, uuid, addressID)
	if err != nil {
		return err
	}

	command, err := json.Marshal(map[string]any{
		"device_uuid": uuid,
		"payload": map[string]any{
			"param": strconv.FormatInt(userUID, 10),
			"info":  8,
		},
		"timestamp": time.Now().Unix(),
		"topic":     topic,
	})
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("data", string(command))
	if err := c.postForm(ctx, "/app/device/lock/logs/add", form, nil); err != nil {
		return err
	}

	// The command endpoint reports success even when the bolt never
	// moves, so re-read status after the lock has had time to act.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.settleDelay):
	}

	status, err := c.LockStatus(ctx, uuid)
	if err != nil {
		// The command was accepted; an unverifiable state is not a failure.
		return nil
	}
	if status.Locked != wantLocked {
		return fmt.Errorf("%w: wanted locked=%t, lock reports locked=%t", ErrStateMismatch, wantLocked, status.Locked)
	}
	return nil
}

func (c *Client) userUID(ctx context.Context, uuid string, addressID int64) (int64, error) {
	entries, err := c.Devices(ctx, addressID)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		for _, device := range entry.Devices {
			if device.UUID != uuid {
				continue
			}
			if device.User.UID == 0 {
				return 0, fmt.Errorf("device %s: %w", uuid, ErrNoUserUID)
			}
			return device.User.UID, nil
		}
	}
	return 0, fmt.Errorf("device %s: %w", uuid, ErrDeviceNotFound)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	sess, err := c.session.Session(ctx)
	if err != nil {
		return err
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("token", sess.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(sess, path), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	return c.doEnvelope(ctx, req, path, out)
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, out any) error {
	sess, err := c.session.Session(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("token", sess.Token); err != nil {
		return err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(sess, path), &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.doEnvelope(ctx, req, path, out)
}

func (c *Client) doEnvelope(ctx context.Context, req *http.Request, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if envelope.Code == http.StatusUnauthorized {
		c.session.Invalidate(ctx)
		return AuthError{Reason: "token rejected; re-login triggered"}
	}
	if envelope.Code != http.StatusOK {
		return APIError{Code: envelope.Code, Description: envelope.Description}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return nil
}

func (c *Client) endpoint(sess session.Session, path string) string {
	base := c.cfg.BaseURL
	if base == "" {
		base = sess.BaseURL
	}
	if base == "" {
		base = defaultBaseURL
	}
	return base + path
}

func isAuthError(err error, apiErr *APIError) bool {
	if errors.As(err, apiErr) {
		return apiErr.Code == http.StatusUnauthorized
	}
	return false
}
