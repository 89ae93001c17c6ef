// Package session owns the lifecycle of tracking sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	repository "github.com/legalize2/location-tracker-app/internal/adapters/repository"
	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/pkg/logger"
	"github.com/legalize2/location-tracker-app/pkg/metrics"
)

// Manager creates, updates and stops tracking sessions. The active flag
// is a one-way latch: a stopped session is never reactivated; resuming
// tracking means starting a new session.
type Manager struct {
	store  repository.Store
	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a session manager backed by store.
func NewManager(store repository.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Named("session")
	}
	return m
}

// Start creates a new active session under trackingID with a zero
// sample counter and returns its id. Fails only if persistence fails.
func (m *Manager) Start(ctx context.Context, trackingID, device string) (string, error) {
	now := m.now().UTC()
	sess := &model.TrackingSession{
		ID:           uuid.NewString(),
		TrackingID:   trackingID,
		StartedAt:    now,
		LastUpdateAt: now,
		Active:       true,
		Device:       device,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	metrics.RecordSessionStart()
	m.logger.Info(ctx, "session started",
		logger.String("sessionID", sess.ID),
		logger.String("trackingID", trackingID),
	)
	return sess.ID, nil
}

// RecordSample increments the session's sample counter and refreshes
// its last-update time. Best-effort by design: an unknown session is
// logged and swallowed, because sample acceptance must never be blocked
// by session bookkeeping.
func (m *Manager) RecordSample(ctx context.Context, sessionID string) {
	err := m.store.TouchSession(ctx, sessionID, m.now().UTC())
	if err == nil {
		return
	}
	if errors.Is(err, repository.ErrNotFound) {
		m.logger.Warn(ctx, "sample recorded against unknown session",
			logger.String("sessionID", sessionID),
		)
		return
	}
	m.logger.Error(ctx, "session counter update failed",
		logger.String("sessionID", sessionID),
		logger.Error(err),
	)
}

// Stop clears the session's active flag. Returns ErrNotFound (wrapped)
// if the session does not exist.
func (m *Manager) Stop(ctx context.Context, sessionID string) error {
	if err := m.store.EndSession(ctx, sessionID); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	metrics.RecordSessionStop()
	m.logger.Info(ctx, "session stopped", logger.String("sessionID", sessionID))
	return nil
}

// Get returns the session record.
func (m *Manager) Get(ctx context.Context, sessionID string) (model.TrackingSession, error) {
	return m.store.GetSession(ctx, sessionID)
}
