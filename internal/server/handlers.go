package server

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetSnapshot returns the latest snapshot, building one on demand
// when none exists yet (first request after startup).
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.service.Latest(); ok {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	snap, err := s.service.Refresh(r.Context())
	if err != nil {
		// The snapshot is still structurally valid; surface both so the
		// client can render the degraded state.
		s.log.Error().Err(err).Msg("On-demand refresh failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":    err.Error(),
			"snapshot": snap,
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleRefresh forces a full pipeline run. This is the endpoint the
// external cron trigger calls.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Refresh(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Refresh failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":    err.Error(),
			"snapshot": snap,
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
