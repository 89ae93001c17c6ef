package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type startSessionRequest struct {
	TrackingID string `json:"trackingId"`
	Device     string `json:"device,omitempty"`
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	TrackingID     string    `json:"tracking_id"`
	Active         bool      `json:"active"`
	StartedAt      time.Time `json:"started_at"`
	LastUpdateAt   time.Time `json:"last_update_at"`
	TotalLocations int64     `json:"total_locations"`
	Device         string    `json:"device,omitempty"`
}

// handleStartSession handles POST /api/v1/sessions.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.TrackingID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errMissingTrackingID)
		return
	}

	id, err := s.deps.StartSession(r.Context(), req.TrackingID, req.Device)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// handleGetSession handles GET /api/v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:      sess.ID,
		TrackingID:     sess.TrackingID,
		Active:         sess.Active,
		StartedAt:      sess.StartedAt,
		LastUpdateAt:   sess.LastUpdateAt,
		TotalLocations: sess.TotalLocations,
		Device:         sess.Device,
	})
}

// handleStopSession handles POST /api/v1/sessions/{id}/stop.
func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.StopSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
