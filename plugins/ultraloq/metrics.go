package ultraloq

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes per-lock state from the coordinator's
// cached snapshot. It never talks to the cloud itself, so scrape
// frequency does not affect the API budget.
type MetricsCollector struct {
	coordinator *Coordinator

	locked       *prometheus.GaugeVec
	jammed       *prometheus.GaugeVec
	online       *prometheus.GaugeVec
	battery      *prometheus.GaugeVec
	wifiStrength *prometheus.GaugeVec
	bleStrength  *prometheus.GaugeVec
	lastSuccess  prometheus.Gauge
	success      prometheus.Gauge
}

func NewMetricsCollector(coordinator *Coordinator) *MetricsCollector {
	labels := []string{"lock_uuid", "lock_name"}
	return &MetricsCollector{
		coordinator: coordinator,
		locked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_locked_bool",
			Help: "Bolt state per lock (1=locked, 0=unlocked)",
		}, labels),
		jammed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_jammed_bool",
			Help: "Bolt jam detected per lock (1=jammed)",
		}, labels),
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_online_bool",
			Help: "Cloud reachability per lock (1=online)",
		}, labels),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_battery_level",
			Help: "Battery level per lock as reported by the cloud",
		}, labels),
		wifiStrength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_wifi_strength",
			Help: "Wifi bridge signal strength per lock",
		}, labels),
		bleStrength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_ble_strength",
			Help: "BLE signal strength per lock",
		}, labels),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_last_success_timestamp_seconds",
			Help: "Last successful poll timestamp (epoch seconds)",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ulockd_ultraloq_poll_success",
			Help: "Last poll success (1=ok, 0=error)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.locked.Describe(ch)
	c.jammed.Describe(ch)
	c.online.Describe(ch)
	c.battery.Describe(ch)
	c.wifiStrength.Describe(ch)
	c.bleStrength.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.success.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.locked.Reset()
	c.jammed.Reset()
	c.online.Reset()
	c.battery.Reset()
	c.wifiStrength.Reset()
	c.bleStrength.Reset()

	for _, state := range c.coordinator.Snapshot() {
		if !state.Known {
			continue
		}
		labels := prometheus.Labels{
			"lock_uuid": state.UUID,
			"lock_name": state.Name,
		}
		c.locked.With(labels).Set(boolToFloat(state.Locked))
		c.jammed.With(labels).Set(boolToFloat(state.Jammed))
		c.online.With(labels).Set(boolToFloat(state.Online))
		c.battery.With(labels).Set(float64(state.Battery))
		c.wifiStrength.With(labels).Set(float64(state.WifiStrength))
		c.bleStrength.With(labels).Set(float64(state.BLEStrength))
	}

	if last := c.coordinator.LastPoll(); !last.IsZero() {
		c.lastSuccess.Set(float64(last.Unix()))
	}
	c.success.Set(boolToFloat(c.coordinator.LastError() == nil && !c.coordinator.LastPoll().IsZero()))

	c.locked.Collect(ch)
	c.jammed.Collect(ch)
	c.online.Collect(ch)
	c.battery.Collect(ch)
	c.wifiStrength.Collect(ch)
	c.bleStrength.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.success.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
