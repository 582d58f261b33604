package hass

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ulockd_hass_mqtt_connected",
		Help: "MQTT broker connectivity (1=connected, 0=disconnected)",
	})
	announceTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulockd_hass_announce_total",
		Help: "Locks announced via MQTT discovery",
	})
	publishTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulockd_hass_state_publish_total",
		Help: "Lock state snapshots published to MQTT",
	})
	commandSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulockd_hass_command_success_total",
		Help: "Lock commands from Home Assistant that succeeded",
	})
	commandFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulockd_hass_command_failure_total",
		Help: "Lock commands from Home Assistant that failed",
	})
	commandRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ulockd_hass_command_rejected_total",
		Help: "Command payloads that were not LOCK or UNLOCK",
	})
)

// MetricsCollectors exposes the bridge collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		connectedGauge,
		announceTotal,
		publishTotal,
		commandSuccessTotal,
		commandFailureTotal,
		commandRejectedTotal,
	}
}
