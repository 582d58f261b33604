package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
schema_version: 1
session:
  credentials_file: /etc/ulockd/credentials.json
ultraloq:
  address_id: 77
hass:
  broker_host: mqtt.local
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Core.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("http_addr default: %q", cfg.Core.HTTPAddr)
	}
	if cfg.Session.StatePath != DefaultStatePath {
		t.Errorf("state_path default: %q", cfg.Session.StatePath)
	}
	if cfg.Session.ReloginIntervalSeconds != DefaultReloginIntervalSeconds {
		t.Errorf("relogin default: %d", cfg.Session.ReloginIntervalSeconds)
	}
	if cfg.Ultraloq.PollIntervalSeconds != DefaultPollIntervalSeconds {
		t.Errorf("poll interval default: %d", cfg.Ultraloq.PollIntervalSeconds)
	}
	if cfg.Ultraloq.AddressID != 77 {
		t.Errorf("address_id: %d", cfg.Ultraloq.AddressID)
	}
	if cfg.Hass.BrokerPort != DefaultBrokerPort {
		t.Errorf("broker_port default: %d", cfg.Hass.BrokerPort)
	}
	if cfg.Hass.DiscoveryPrefix != DefaultDiscoveryPrefix {
		t.Errorf("discovery_prefix default: %q", cfg.Hass.DiscoveryPrefix)
	}
}

func TestLoadRejectsBadSchema(t *testing.T) {
	path := writeConfig(t, `
schema_version: 2
session:
  credentials_file: /etc/ulockd/credentials.json
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "schema_version") {
		t.Fatalf("expected schema_version error, got %v", err)
	}
}

func TestLoadRequiresCredentialsFile(t *testing.T) {
	path := writeConfig(t, `
schema_version: 1
session: {}
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "credentials_file") {
		t.Fatalf("expected credentials_file error, got %v", err)
	}
}

func TestLoadBlobNeedsFullSet(t *testing.T) {
	path := writeConfig(t, `
schema_version: 1
session:
  credentials_file: /etc/ulockd/credentials.json
  blob:
    endpoint: https://s3.example.com
    bucket: ulockd
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "access_key_file") {
		t.Fatalf("expected blob key error, got %v", err)
	}
}

func TestLoadHassNeedsBroker(t *testing.T) {
	path := writeConfig(t, `
schema_version: 1
session:
  credentials_file: /etc/ulockd/credentials.json
hass: {}
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "broker_host") {
		t.Fatalf("expected broker_host error, got %v", err)
	}
}

func TestEnabledPlugins(t *testing.T) {
	cfg := &Config{}
	if enabled := EnabledPlugins(cfg); enabled["ultraloq"] {
		t.Fatalf("ultraloq must be disabled without config")
	}
	cfg.Ultraloq = &UltraloqConfig{}
	if enabled := EnabledPlugins(cfg); !enabled["ultraloq"] {
		t.Fatalf("ultraloq must be enabled by config presence")
	}
}
