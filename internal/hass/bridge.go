package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config configures the Home Assistant MQTT bridge.
type Config struct {
	BrokerHost      string
	BrokerPort      int
	TLS             bool
	Username        string
	Password        string
	DiscoveryPrefix string
	TopicPrefix     string
}

// Commander executes lock commands on behalf of Home Assistant.
type Commander interface {
	Lock(ctx context.Context, uuid string) error
	Unlock(ctx context.Context, uuid string) error
}

// LockState is a per-lock snapshot the bridge publishes.
type LockState struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware,omitempty"`
	Known        bool   `json:"known"`
	Locked       bool   `json:"locked"`
	Jammed       bool   `json:"jammed"`
	Online       bool   `json:"online"`
	Battery      int    `json:"battery"`
	WifiStrength int    `json:"wifi_strength"`
	BLEStrength  int    `json:"ble_strength"`
}

const commandTimeout = 30 * time.Second

// Bridge announces locks to Home Assistant via MQTT discovery and
// relays state and commands.
type Bridge struct {
	cfg       Config
	mqtt      mqttConn
	commander Commander

	mu        sync.Mutex
	announced map[string]bool
}

func NewBridge(cfg Config, commander Commander) (*Bridge, error) {
	if cfg.BrokerHost == "" {
		return nil, fmt.Errorf("broker host is required")
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "ulockd"
	}
	if commander == nil {
		return nil, fmt.Errorf("commander is required")
	}

	b := &Bridge{cfg: cfg, commander: commander, announced: make(map[string]bool)}
	client, err := newMQTTClient(mqttConfig{
		host:     cfg.BrokerHost,
		port:     cfg.BrokerPort,
		tls:      cfg.TLS,
		username: cfg.Username,
		password: cfg.Password,
		onUp:     func() { connectedGauge.Set(1) },
	})
	if err != nil {
		return nil, fmt.Errorf("connect mqtt: %w", err)
	}
	b.mqtt = client
	return b, nil
}

// Publish pushes the latest poll snapshot. Locks seen for the first
// time are announced with retained discovery configs before any state.
func (b *Bridge) Publish(states []LockState) error {
	for _, state := range states {
		if err := b.announce(state); err != nil {
			return err
		}
		if err := b.publishState(state); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) Close() {
	connectedGauge.Set(0)
	b.mqtt.close()
}

func (b *Bridge) announce(state LockState) error {
	b.mu.Lock()
	done := b.announced[state.UUID]
	b.mu.Unlock()
	if done {
		return nil
	}

	object := objectID(state.UUID)
	device := deviceInfo{
		Identifiers:  []string{object},
		Name:         state.Name,
		Manufacturer: manufacturerName,
		Model:        state.Model,
		SWVersion:    state.Firmware,
	}

	lock := lockConfig{
		Name:              state.Name,
		UniqueID:          object + "_lock",
		StateTopic:        b.stateTopic(state.UUID),
		CommandTopic:      b.commandTopic(state.UUID),
		AvailabilityTopic: b.availabilityTopic(state.UUID),
		PayloadLock:       payloadLock,
		PayloadUnlock:     payloadUnlock,
		StateLocked:       stateLocked,
		StateUnlocked:     stateUnlocked,
		StateJammed:       stateJammed,
		Device:            device,
	}
	if err := b.publishJSON(b.cfg.DiscoveryPrefix+"/lock/"+object+"/config", lock); err != nil {
		return err
	}

	battery := sensorConfig{
		Name:              state.Name + " Battery",
		UniqueID:          object + "_battery",
		StateTopic:        b.batteryTopic(state.UUID),
		AvailabilityTopic: b.availabilityTopic(state.UUID),
		DeviceClass:       "battery",
		UnitOfMeasurement: "%",
		StateClass:        "measurement",
		Device:            device,
	}
	if err := b.publishJSON(b.cfg.DiscoveryPrefix+"/sensor/"+object+"_battery/config", battery); err != nil {
		return err
	}

	wifi := sensorConfig{
		Name:              state.Name + " WiFi Strength",
		UniqueID:          object + "_wifi",
		StateTopic:        b.wifiTopic(state.UUID),
		AvailabilityTopic: b.availabilityTopic(state.UUID),
		StateClass:        "measurement",
		Device:            device,
	}
	if err := b.publishJSON(b.cfg.DiscoveryPrefix+"/sensor/"+object+"_wifi/config", wifi); err != nil {
		return err
	}

	uuid := state.UUID
	if _, err := b.mqtt.subscribe(b.commandTopic(uuid), func(payload []byte) {
		b.handleCommand(uuid, payload)
	}); err != nil {
		return fmt.Errorf("subscribe command topic: %w", err)
	}

	b.mu.Lock()
	b.announced[state.UUID] = true
	b.mu.Unlock()
	announceTotal.Inc()
	return nil
}

func (b *Bridge) publishState(state LockState) error {
	availability := payloadOffline
	if state.Online {
		availability = payloadOnline
	}
	if err := b.mqtt.publish(b.availabilityTopic(state.UUID), []byte(availability), true); err != nil {
		return err
	}

	if !state.Known {
		return nil
	}

	value := stateUnlocked
	switch {
	case state.Jammed:
		value = stateJammed
	case state.Locked:
		value = stateLocked
	}
	if err := b.mqtt.publish(b.stateTopic(state.UUID), []byte(value), true); err != nil {
		return err
	}
	if err := b.mqtt.publish(b.batteryTopic(state.UUID), []byte(strconv.Itoa(state.Battery)), true); err != nil {
		return err
	}
	if err := b.mqtt.publish(b.wifiTopic(state.UUID), []byte(strconv.Itoa(state.WifiStrength)), true); err != nil {
		return err
	}
	publishTotal.Inc()
	return nil
}

func (b *Bridge) handleCommand(uuid string, payload []byte) {
	action := strings.TrimSpace(string(payload))
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch action {
	case payloadLock:
		err = b.commander.Lock(ctx, uuid)
	case payloadUnlock:
		err = b.commander.Unlock(ctx, uuid)
	default:
		commandRejectedTotal.Inc()
		return
	}

	if err != nil {
		commandFailureTotal.Inc()
		return
	}
	commandSuccessTotal.Inc()
}

func (b *Bridge) publishJSON(topic string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.mqtt.publish(topic, data, true)
}

func (b *Bridge) stateTopic(uuid string) string {
	return b.cfg.TopicPrefix + "/" + uuid + "/state"
}

func (b *Bridge) commandTopic(uuid string) string {
	return b.cfg.TopicPrefix + "/" + uuid + "/set"
}

func (b *Bridge) availabilityTopic(uuid string) string {
	return b.cfg.TopicPrefix + "/" + uuid + "/availability"
}

func (b *Bridge) batteryTopic(uuid string) string {
	return b.cfg.TopicPrefix + "/" + uuid + "/battery"
}

func (b *Bridge) wifiTopic(uuid string) string {
	return b.cfg.TopicPrefix + "/" + uuid + "/wifi"
}

func objectID(uuid string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, uuid)
	return "ulockd_" + id
}
