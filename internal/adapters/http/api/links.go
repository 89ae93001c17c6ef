package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
)

var (
	errMissingName       = errors.New("name is required")
	errMissingTrackingID = errors.New("trackingId is required")
)

type createLinkRequest struct {
	Name            string `json:"name"`
	IntervalSeconds int    `json:"intervalSeconds,omitempty"`
	MaxDurationMins int    `json:"maxDurationMins,omitempty"`
}

type linkResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Active          bool      `json:"active"`
	IntervalSeconds int       `json:"interval_seconds"`
	MaxDurationMins int       `json:"max_duration_mins"`
	CreatedAt       time.Time `json:"created_at"`
}

func linkToResponse(l model.TrackingLink) linkResponse {
	return linkResponse{
		ID:              l.ID,
		Name:            l.Name,
		Active:          l.Active,
		IntervalSeconds: l.IntervalSeconds,
		MaxDurationMins: l.MaxDurationMins,
		CreatedAt:       l.CreatedAt,
	}
}

// handleCreateLink handles POST /api/v1/links.
func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errMissingName)
		return
	}

	link, err := s.deps.CreateLink(r.Context(), req.Name, req.IntervalSeconds, req.MaxDurationMins)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, linkToResponse(link))
}

// handleGetLink handles GET /api/v1/links/{id}.
func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.deps.GetLink(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, linkToResponse(link))
}

type sampleResponse struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	AccuracyM    float64   `json:"accuracy"`
	SpeedMPS     *float64  `json:"speed,omitempty"`
	HeadingDeg   *float64  `json:"heading,omitempty"`
	AltitudeM    *float64  `json:"altitude,omitempty"`
	BatteryLevel *float64  `json:"batteryLevel,omitempty"`
	NetworkType  string    `json:"networkType,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

type historyResponse struct {
	TrackingID string           `json:"tracking_id"`
	Count      int              `json:"count"`
	Samples    []sampleResponse `json:"samples"`
}

// handleHistory handles GET /api/v1/links/{id}/history?limit=n.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		limit = n
	}

	samples, err := s.deps.History(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := historyResponse{TrackingID: id, Count: len(samples), Samples: make([]sampleResponse, 0, len(samples))}
	for _, smp := range samples {
		out.Samples = append(out.Samples, sampleResponse{
			ID:           smp.ID,
			SessionID:    smp.SessionID,
			Latitude:     smp.Latitude,
			Longitude:    smp.Longitude,
			AccuracyM:    smp.AccuracyM,
			SpeedMPS:     smp.SpeedMPS,
			HeadingDeg:   smp.HeadingDeg,
			AltitudeM:    smp.AltitudeM,
			BatteryLevel: smp.BatteryLevel,
			NetworkType:  smp.NetworkType,
			CapturedAt:   smp.CapturedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRoute handles GET /api/v1/links/{id}/route.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.AnalyzeRoute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type createGeofenceRequest struct {
	CenterLat *float64 `json:"centerLat"`
	CenterLon *float64 `json:"centerLon"`
	RadiusM   *float64 `json:"radius"`
	Action    string   `json:"action,omitempty"`
}

type geofenceResponse struct {
	ID         string  `json:"id"`
	TrackingID string  `json:"tracking_id"`
	CenterLat  float64 `json:"center_lat"`
	CenterLon  float64 `json:"center_lon"`
	RadiusM    float64 `json:"radius_m"`
	Action     string  `json:"action"`
	Active     bool    `json:"active"`
}

// handleCreateGeofence handles POST /api/v1/links/{id}/geofences.
func (s *Server) handleCreateGeofence(w http.ResponseWriter, r *http.Request) {
	var req createGeofenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	fence := model.Geofence{
		TrackingID: mux.Vars(r)["id"],
		Action:     req.Action,
		Active:     true,
	}
	if req.CenterLat != nil {
		fence.CenterLat = *req.CenterLat
	}
	if req.CenterLon != nil {
		fence.CenterLon = *req.CenterLon
	}
	if req.RadiusM != nil {
		fence.RadiusM = *req.RadiusM
	}
	if err := s.deps.CreateGeofence(r.Context(), &fence); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, geofenceResponse{
		ID:         fence.ID,
		TrackingID: fence.TrackingID,
		CenterLat:  fence.CenterLat,
		CenterLon:  fence.CenterLon,
		RadiusM:    fence.RadiusM,
		Action:     fence.Action,
		Active:     fence.Active,
	})
}

// handleListGeofences handles GET /api/v1/links/{id}/geofences.
func (s *Server) handleListGeofences(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	fences, err := s.deps.Geofences(r.Context(), mux.Vars(r)["id"], activeOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]geofenceResponse, 0, len(fences))
	for _, f := range fences {
		out = append(out, geofenceResponse{
			ID:         f.ID,
			TrackingID: f.TrackingID,
			CenterLat:  f.CenterLat,
			CenterLon:  f.CenterLon,
			RadiusM:    f.RadiusM,
			Action:     f.Action,
			Active:     f.Active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
