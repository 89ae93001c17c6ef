// Package repository defines the tracking datastore interface and its
// SQLite and in-memory implementations.
package repository

import (
	"context"
	"time"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
)

// Store provides persistence for links, samples, sessions and geofences.
// The location history is append-only: samples are never updated or
// deleted through this interface.
type Store interface {
	// Links.
	CreateLink(ctx context.Context, link *model.TrackingLink) error
	GetLink(ctx context.Context, id string) (model.TrackingLink, error)
	DeactivateLink(ctx context.Context, id string) error

	// Samples. AppendSample returns the assigned row id.
	AppendSample(ctx context.Context, sample *model.LocationSample) (int64, error)
	SamplesByLink(ctx context.Context, trackingID string, limit int) ([]model.LocationSample, error)
	SamplesBySession(ctx context.Context, sessionID string) ([]model.LocationSample, error)

	// Sessions. TouchSession atomically increments the sample counter
	// and refreshes the last-update time. EndSession clears the active
	// flag; a session never transitions back to active.
	CreateSession(ctx context.Context, session *model.TrackingSession) error
	GetSession(ctx context.Context, id string) (model.TrackingSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	EndSession(ctx context.Context, id string) error
	CountActiveSessions(ctx context.Context) int

	// Geofences.
	CreateGeofence(ctx context.Context, fence *model.Geofence) error
	GeofencesByLink(ctx context.Context, trackingID string, activeOnly bool) ([]model.Geofence, error)

	Close() error
}
