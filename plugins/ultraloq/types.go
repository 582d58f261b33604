package ultraloq

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Every cloud endpoint wraps its payload in this envelope; code 200 is
// success and code 401 means the token or credentials were rejected.
type apiResponse struct {
	Code        int             `json:"code"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

// APIError surfaces non-success envelope codes.
type APIError struct {
	Code        int
	Description string
}

func (e APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("ultraloq api error %d", e.Code)
	}
	return fmt.Sprintf("ultraloq api error %d: %s", e.Code, e.Description)
}

// AuthError is returned when the cloud rejects the credentials or a
// stale session token.
type AuthError struct {
	Reason string
}

func (e AuthError) Error() string {
	return "ultraloq auth error: " + e.Reason
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAddressNotFound    = errors.New("address not found")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrNoUserUID          = errors.New("device has no user uid")
	ErrLockOffline        = errors.New("lock is not online")
	ErrStateMismatch      = errors.New("lock state did not change")
)

// Address scopes device listing.
type Address struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Lock is a U-Bolt device flattened out of the grouped device listing.
type Lock struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Model   string `json:"model"`
	UserUID int64  `json:"user_uid"`
	EntryID int64  `json:"entry_id"`
}

// The cloud reports is_locked as 1 (unlocked) or 2 (locked); anything
// else is unknown.
const (
	rawStateUnlocked = 1
	rawStateLocked   = 2
)

// LockStatus is a point-in-time device status.
type LockStatus struct {
	UUID         string `json:"uuid"`
	Model        string `json:"model"`
	Locked       bool   `json:"locked"`
	Unlocked     bool   `json:"unlocked"`
	RawLockState int    `json:"raw_lock_state"`
	Online       bool   `json:"online"`
	Battery      int    `json:"battery"`
	WifiStrength int    `json:"wifi_strength"`
	BLEStrength  int    `json:"ble_strength"`
	NetStrength  int    `json:"net_strength"`
	Version      string `json:"version"`
	Jammed       bool   `json:"jammed"`
	Sleep        bool   `json:"sleep"`
	Timestamp    int64  `json:"timestamp"`
	LastTime     int64  `json:"lasttime"`
}

// OnlineStatus reports reachability over BLE bridge and remote link.
// Commands require both.
type OnlineStatus struct {
	BLE    bool `json:"ble"`
	Remote bool `json:"remote"`
}

func (s OnlineStatus) IsOnline() bool {
	return s.BLE && s.Remote
}

// Wire shapes.

type wireTokenData struct {
	Token string `json:"token"`
	URLs  struct {
		Utec string `json:"utec"`
	} `json:"urls"`
}

type wireLoginData struct {
	UUID string `json:"uuid"`
}

type wireDeviceEntry struct {
	ID      int64        `json:"id"`
	Devices []wireDevice `json:"devices"`
}

type wireDevice struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Model string `json:"model"`
	User  struct {
		UID int64 `json:"uid"`
	} `json:"user"`
}

type wireStatus struct {
	UUID         string `json:"uuid"`
	Model        string `json:"model"`
	IsLocked     int    `json:"is_locked"`
	Online       int    `json:"online"`
	Battery      int    `json:"battery"`
	WifiStrength int    `json:"wifi_strength"`
	BLEStrength  int    `json:"ble_strength"`
	NetStrength  int    `json:"net_strength"`
	Version      string `json:"version"`
	IsJam        int    `json:"is_jam"`
	Sleep        int    `json:"sleep"`
	Timestamp    int64  `json:"timestamp"`
	LastTime     int64  `json:"lasttime"`
}

func (w wireStatus) toStatus() LockStatus {
	return LockStatus{
		UUID:         w.UUID,
		Model:        w.Model,
		Locked:       w.IsLocked == rawStateLocked,
		Unlocked:     w.IsLocked == rawStateUnlocked,
		RawLockState: w.IsLocked,
		Online:       w.Online != 0,
		Battery:      w.Battery,
		WifiStrength: w.WifiStrength,
		BLEStrength:  w.BLEStrength,
		NetStrength:  w.NetStrength,
		Version:      w.Version,
		Jammed:       w.IsJam != 0,
		Sleep:        w.Sleep != 0,
		Timestamp:    w.Timestamp,
		LastTime:     w.LastTime,
	}
}

type wireOnline struct {
	BLE    int `json:"ble"`
	Remote int `json:"remote"`
}
