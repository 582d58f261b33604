package router

import (
	"net/http"

	"github.com/ulock-home/ulockd/internal/core"
)

// RegisterPlugins mounts the plugin registry and then every enabled
// plugin's own routes on the mux. The registry goes first so that
// /api/plugins always answers, even with zero plugins enabled.
func RegisterPlugins(mux *http.ServeMux, plugins []core.Plugin) {
	core.NewRegistryService(plugins).RegisterHTTP(mux)

	for _, p := range plugins {
		p.RegisterHTTP(mux)
	}
}
