package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion                 = 1
	DefaultPath                   = "/etc/ulockd/config.yaml"
	DefaultHTTPAddr               = "0.0.0.0:8080"
	DefaultDashboardDir           = "/var/lib/ulockd/dashboards"
	DefaultStatePath              = "/var/lib/ulockd/session/ultraloq.json"
	DefaultBlobPrefix             = "ulockd/session"
	DefaultReloginIntervalSeconds = 21600
	DefaultPollIntervalSeconds    = 300
	DefaultDiscoveryPrefix        = "homeassistant"
	DefaultTopicPrefix            = "ulockd"
	DefaultBrokerPort             = 1883
)

// Config is the daemon configuration.
type Config struct {
	SchemaVersion int             `yaml:"schema_version"`
	Core          *CoreConfig     `yaml:"core"`
	Session       *SessionConfig  `yaml:"session"`
	Ultraloq      *UltraloqConfig `yaml:"ultraloq"`
	Hass          *HassConfig     `yaml:"hass"`
}

type CoreConfig struct {
	HTTPAddr     string `yaml:"http_addr"`
	DashboardDir string `yaml:"dashboard_dir"`
}

type SessionConfig struct {
	CredentialsFile        string     `yaml:"credentials_file"`
	StatePath              string     `yaml:"state_path"`
	ReloginIntervalSeconds int        `yaml:"relogin_interval_seconds"`
	Blob                   BlobConfig `yaml:"blob"`
}

type BlobConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Region        string `yaml:"region"`
}

type UltraloqConfig struct {
	AddressID           int64  `yaml:"address_id"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	TokenURL            string `yaml:"token_url"`
	BaseURL             string `yaml:"base_url"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
}

type HassConfig struct {
	BrokerHost      string `yaml:"broker_host"`
	BrokerPort      int    `yaml:"broker_port"`
	TLS             bool   `yaml:"tls"`
	Username        string `yaml:"username"`
	PasswordFile    string `yaml:"password_file"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	TopicPrefix     string `yaml:"topic_prefix"`
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Core == nil {
		cfg.Core = &CoreConfig{}
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DashboardDir == "" {
		cfg.Core.DashboardDir = DefaultDashboardDir
	}

	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.StatePath == "" {
		cfg.Session.StatePath = DefaultStatePath
	}
	if cfg.Session.ReloginIntervalSeconds == 0 {
		cfg.Session.ReloginIntervalSeconds = DefaultReloginIntervalSeconds
	}
	if cfg.Session.Blob.Prefix == "" {
		cfg.Session.Blob.Prefix = DefaultBlobPrefix
	}

	if cfg.Ultraloq != nil && cfg.Ultraloq.PollIntervalSeconds == 0 {
		cfg.Ultraloq.PollIntervalSeconds = DefaultPollIntervalSeconds
	}

	if cfg.Hass != nil {
		if cfg.Hass.BrokerPort == 0 {
			cfg.Hass.BrokerPort = DefaultBrokerPort
		}
		if cfg.Hass.DiscoveryPrefix == "" {
			cfg.Hass.DiscoveryPrefix = DefaultDiscoveryPrefix
		}
		if cfg.Hass.TopicPrefix == "" {
			cfg.Hass.TopicPrefix = DefaultTopicPrefix
		}
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}

	if cfg.Core == nil {
		return fmt.Errorf("core config is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}

	if cfg.Session == nil {
		return fmt.Errorf("session config is required")
	}
	if cfg.Session.CredentialsFile == "" {
		return fmt.Errorf("session.credentials_file is required")
	}
	// The blob mirror is optional; an endpoint opts in and then needs
	// the full set.
	if cfg.Session.Blob.Endpoint != "" {
		if cfg.Session.Blob.Bucket == "" {
			return fmt.Errorf("session.blob.bucket is required")
		}
		if cfg.Session.Blob.AccessKeyFile == "" {
			return fmt.Errorf("session.blob.access_key_file is required")
		}
		if cfg.Session.Blob.SecretKeyFile == "" {
			return fmt.Errorf("session.blob.secret_key_file is required")
		}
	}

	if cfg.Ultraloq != nil && cfg.Ultraloq.AddressID < 0 {
		return fmt.Errorf("ultraloq.address_id must not be negative")
	}

	if cfg.Hass != nil && cfg.Hass.BrokerHost == "" {
		return fmt.Errorf("hass.broker_host is required")
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.Ultraloq != nil {
		enabled["ultraloq"] = true
	}
	return enabled
}
