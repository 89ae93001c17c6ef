// Package api declares HTTP contracts and route registration.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	service "github.com/legalize2/location-tracker-app/internal/app"
	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/internal/domain/route"
)

// Dependencies bundles everything the handlers need. Keeping it an
// interface keeps this layer loosely coupled to the pipeline service.
type Dependencies interface {
	Ingest(ctx context.Context, req *service.IngestRequest) (service.Accepted, error)

	StartSession(ctx context.Context, trackingID, device string) (string, error)
	StopSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (model.TrackingSession, error)

	CreateLink(ctx context.Context, name string, intervalSeconds, maxDurationMins int) (model.TrackingLink, error)
	GetLink(ctx context.Context, id string) (model.TrackingLink, error)
	History(ctx context.Context, trackingID string, limit int) ([]model.LocationSample, error)
	AnalyzeRoute(ctx context.Context, trackingID string) (route.Summary, error)

	CreateGeofence(ctx context.Context, fence *model.Geofence) error
	Geofences(ctx context.Context, trackingID string, activeOnly bool) ([]model.Geofence, error)
}

// StatsProvider exposes a monitoring snapshot.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires the REST routes for the tracking API.
type Server struct {
	deps  Dependencies
	stats StatsProvider
}

// NewServer creates the API server.
func NewServer(deps Dependencies, stats StatsProvider) *Server {
	return &Server{deps: deps, stats: stats}
}

// Register attaches all REST routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.handleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.handleStats, "stats")).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/links", MetricsMiddleware(s.handleCreateLink, "links")).Methods(http.MethodPost)
	v1.HandleFunc("/links/{id}", MetricsMiddleware(s.handleGetLink, "links")).Methods(http.MethodGet)
	v1.HandleFunc("/links/{id}/history", MetricsMiddleware(s.handleHistory, "history")).Methods(http.MethodGet)
	v1.HandleFunc("/links/{id}/route", MetricsMiddleware(s.handleRoute, "route")).Methods(http.MethodGet)
	v1.HandleFunc("/links/{id}/geofences", MetricsMiddleware(s.handleCreateGeofence, "geofences")).Methods(http.MethodPost)
	v1.HandleFunc("/links/{id}/geofences", MetricsMiddleware(s.handleListGeofences, "geofences")).Methods(http.MethodGet)
	v1.HandleFunc("/sessions", MetricsMiddleware(s.handleStartSession, "sessions")).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", MetricsMiddleware(s.handleGetSession, "sessions")).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/stop", MetricsMiddleware(s.handleStopSession, "sessions")).Methods(http.MethodPost)
	v1.HandleFunc("/locations", MetricsMiddleware(s.handlePostLocation, "locations")).Methods(http.MethodPost)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
