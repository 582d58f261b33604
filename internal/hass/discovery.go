package hass

// Discovery payloads follow the Home Assistant MQTT discovery schema:
// a retained config message per entity under
// <discovery_prefix>/<component>/<object_id>/config.

type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type lockConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	CommandTopic      string     `json:"command_topic"`
	AvailabilityTopic string     `json:"availability_topic"`
	PayloadLock       string     `json:"payload_lock"`
	PayloadUnlock     string     `json:"payload_unlock"`
	StateLocked       string     `json:"state_locked"`
	StateUnlocked     string     `json:"state_unlocked"`
	StateJammed       string     `json:"state_jammed"`
	Optimistic        bool       `json:"optimistic"`
	Device            deviceInfo `json:"device"`
}

type sensorConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	AvailabilityTopic string     `json:"availability_topic"`
	DeviceClass       string     `json:"device_class,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	StateClass        string     `json:"state_class,omitempty"`
	Device            deviceInfo `json:"device"`
}

const (
	payloadLock      = "LOCK"
	payloadUnlock    = "UNLOCK"
	stateLocked      = "LOCKED"
	stateUnlocked    = "UNLOCKED"
	stateJammed      = "JAMMED"
	payloadOnline    = "online"
	payloadOffline   = "offline"
	manufacturerName = "U-tec"
)
