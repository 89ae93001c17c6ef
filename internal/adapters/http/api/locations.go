package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	service "github.com/legalize2/location-tracker-app/internal/app"
)

// locationRequest mirrors the inbound sample JSON.
type locationRequest struct {
	TrackingID   string   `json:"trackingId"`
	SessionID    string   `json:"sessionId"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Accuracy     *float64 `json:"accuracy"`
	Speed        *float64 `json:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	BatteryLevel *float64 `json:"batteryLevel,omitempty"`
	NetworkType  string   `json:"networkType,omitempty"`
	CapturedAt   string   `json:"capturedAt,omitempty"` // RFC3339; server stamps when absent
}

type locationResponse struct {
	Status    string    `json:"status"`
	Duplicate bool      `json:"duplicate"`
	SampleID  int64     `json:"sample_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// handlePostLocation handles POST /api/v1/locations.
func (s *Server) handlePostLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ingest := &service.IngestRequest{
		TrackingID:    req.TrackingID,
		SessionID:     req.SessionID,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Accuracy:      req.Accuracy,
		Speed:         req.Speed,
		Heading:       req.Heading,
		Altitude:      req.Altitude,
		BatteryLevel:  req.BatteryLevel,
		NetworkType:   req.NetworkType,
		UserAgent:     r.UserAgent(),
		OriginAddress: remoteHost(r),
	}
	if req.CapturedAt != "" {
		at, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		ingest.CapturedAt = at
	}

	acc, err := s.deps.Ingest(r.Context(), ingest)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if acc.Duplicate {
		writeJSON(w, http.StatusOK, locationResponse{Status: "duplicate", Duplicate: true, Timestamp: acc.Timestamp})
		return
	}
	writeJSON(w, http.StatusAccepted, locationResponse{
		Status:    "accepted",
		SampleID:  acc.SampleID,
		Timestamp: acc.Timestamp,
	})
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
