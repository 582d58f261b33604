package ultraloq

import (
	_ "embed"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulock-home/ulockd/internal/core"
	"github.com/ulock-home/ulockd/internal/rate"
	"github.com/ulock-home/ulockd/internal/session"
)

var (
	_ core.Plugin      = Plugin{}
	_ rate.RateLimited = Plugin{}
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

// Plugin implements the ulockd plugin contract.
type Plugin struct {
	client      *Client
	coordinator *Coordinator

	initErr error
}

// NewPlugin wires the cloud client and coordinator from daemon config.
func NewPlugin(cfg Config, sess *session.Manager) Plugin {
	client, err := NewClient(cfg, sess)
	if err != nil {
		return Plugin{initErr: err}
	}
	return Plugin{
		client:      client,
		coordinator: NewCoordinator(client, cfg),
	}
}

// Coordinator exposes the poll loop for the daemon to run and for the
// MQTT bridge to consume.
func (p Plugin) Coordinator() *Coordinator {
	return p.coordinator
}

func (p Plugin) ID() string {
	return "ultraloq"
}

func (p Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    "ultraloq",
		DisplayName: "Ultraloq",
		Version:     "0.1.0",
		Routes: []string{
			"GET /api/ultraloq/addresses",
			"GET /api/ultraloq/locks",
			"GET /api/ultraloq/locks/{uuid}",
			"POST /api/ultraloq/locks/{uuid}/lock",
			"POST /api/ultraloq/locks/{uuid}/unlock",
			"POST /api/ultraloq/refresh",
		},
	}
}

func (p Plugin) AgentsMD() string {
	return agentsMD
}

func (p Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "ultraloq-overview", JSON: dashboardJSON}}
}

func (p Plugin) RegisterHTTP(mux *http.ServeMux) {
	if p.client == nil {
		return
	}
	svc := &service{client: p.client, coordinator: p.coordinator}
	svc.registerRoutes(mux)
}

func (p Plugin) RateLimits() rate.Declaration {
	return RateLimits()
}

func (p Plugin) Collectors() []prometheus.Collector {
	if p.coordinator == nil {
		return nil
	}
	return []prometheus.Collector{NewMetricsCollector(p.coordinator)}
}

func (p Plugin) Health() core.HealthStatus {
	if p.initErr != nil {
		return core.HealthError
	}
	if p.coordinator.LastError() != nil {
		return core.HealthDegraded
	}
	return core.HealthHealthy
}

func (p Plugin) HealthMessage() string {
	if p.initErr != nil {
		return p.initErr.Error()
	}
	if err := p.coordinator.LastError(); err != nil {
		return err.Error()
	}
	return ""
}
