package server

import (
	"net/http"
)

// DashboardsHandler serves embedded Grafana dashboards keyed by URL
// path. The content only changes with the binary, so clients may
// cache briefly.
func DashboardsHandler(dashboards map[string][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := dashboards[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=300")
		_, _ = w.Write(data)
	})
}
