package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	retryAfterGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ulockd_rate_limit_retry_after_seconds",
			Help: "Retry-after seconds for provider rate limits",
		},
		[]string{"provider"},
	)
	lastStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ulockd_rate_limit_last_status_code",
			Help: "Last HTTP status code observed by the rate-limit wrapper",
		},
		[]string{"provider"},
	)
	cooldownTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ulockd_rate_limit_cooldown_total",
			Help: "Cooldowns entered after upstream 429 responses",
		},
		[]string{"provider"},
	)
	cacheHitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ulockd_rate_limit_cache_hit_total",
			Help: "Responses served from the budget-exhausted cache",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors exposes shared rate-limit collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		retryAfterGauge,
		lastStatusGauge,
		cooldownTotal,
		cacheHitTotal,
	}
}
