package ultraloq

import (
	"fmt"
	"strings"
	"time"

	"github.com/ulock-home/ulockd/internal/config"
)

const (
	defaultTokenURL = "https://uemc.u-tec.com/app/token"
	defaultBaseURL  = "https://cloud.u-tec.com"

	// App identity presented to the vendor cloud; matches the Android
	// "U home" build the API was captured from.
	appID      = "13ca0de1e6054747c44665ae13e36c2c"
	clientID   = "1375ac0809878483ee236497d57f371f"
	appVersion = "3.2"
	timezone   = "-8"
	userAgent  = "U home/3.2.9.2 (Linux; U; Android 12; Android SDK built for arm64 Build/SE1A.220621.001)"

	// Only the U-Bolt line is a lock; other categories (bridges,
	// keypads) share the same device listing.
	lockModel = "U-Bolt"

	defaultTimeout     = 30 * time.Second
	defaultSettleDelay = 2 * time.Second
)

// Config defines runtime configuration for the Ultraloq client.
type Config struct {
	AddressID    int64
	PollInterval time.Duration
	TokenURL     string
	BaseURL      string
	Timeout      time.Duration
}

func ConfigFromFile(cfg *config.UltraloqConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("ultraloq config is required")
	}
	if cfg.AddressID < 0 {
		return Config{}, fmt.Errorf("ultraloq address_id must not be negative")
	}

	out := Config{
		AddressID:    cfg.AddressID,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		TokenURL:     strings.TrimSpace(cfg.TokenURL),
		BaseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if out.PollInterval <= 0 {
		out.PollInterval = time.Duration(config.DefaultPollIntervalSeconds) * time.Second
	}
	if out.TokenURL == "" {
		out.TokenURL = defaultTokenURL
	}
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	return out, nil
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":    userAgent,
		"X-Api-Version": "3.3",
		"X-Build":       "Release",
		"X-Stage":       "Release",
	}
}
