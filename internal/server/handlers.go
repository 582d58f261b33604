package server

import (
	"net/http"
)

// HealthHandler reports daemon liveness for container orchestration.
// Per-plugin health lives in the registry API; this only says the
// process is up and serving.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
