package ultraloq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"
)

const commandTimeout = 45 * time.Second

// service exposes the lock API over the daemon's HTTP mux.
type service struct {
	client      *Client
	coordinator *Coordinator
}

func (s *service) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ultraloq/addresses", s.handleAddresses)
	mux.HandleFunc("GET /api/ultraloq/locks", s.handleLocks)
	mux.HandleFunc("GET /api/ultraloq/locks/{uuid}", s.handleLockState)
	mux.HandleFunc("POST /api/ultraloq/locks/{uuid}/lock", s.handleLock)
	mux.HandleFunc("POST /api/ultraloq/locks/{uuid}/unlock", s.handleUnlock)
	mux.HandleFunc("POST /api/ultraloq/refresh", s.handleRefresh)
}

func (s *service) handleAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.client.Addresses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"addresses": addresses})
}

func (s *service) handleLocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"locks": s.coordinator.Snapshot()})
}

func (s *service) handleLockState(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	state, ok := s.coordinator.LockState(uuid)
	if !ok {
		writeError(w, ErrDeviceNotFound)
		return
	}
	writeJSON(w, state)
}

func (s *service) handleLock(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.coordinator.Lock)
}

func (s *service) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, s.coordinator.Unlock)
}

func (s *service) command(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	uuid := r.PathValue("uuid")

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := op(ctx, uuid); err != nil {
		writeError(w, err)
		return
	}
	state, _ := s.coordinator.LockState(uuid)
	writeJSON(w, state)
}

func (s *service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.coordinator.RequestRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ultraloq: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var authErr AuthError
	var apiErr APIError
	switch {
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrAddressNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrLockOffline):
		status = http.StatusConflict
	case errors.Is(err, ErrStateMismatch), errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
