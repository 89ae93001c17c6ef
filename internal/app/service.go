// Package service provides the location ingestion pipeline and wires
// the session manager, dispatch pool and fan-out router together.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/legalize2/location-tracker-app/internal/adapters/mq/queue"
	"github.com/legalize2/location-tracker-app/internal/adapters/mq/worker"
	repository "github.com/legalize2/location-tracker-app/internal/adapters/repository"
	"github.com/legalize2/location-tracker-app/internal/domain/dedupe"
	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/internal/domain/route"
	"github.com/legalize2/location-tracker-app/internal/fanout"
	"github.com/legalize2/location-tracker-app/internal/session"
	"github.com/legalize2/location-tracker-app/pkg/logger"
	"github.com/legalize2/location-tracker-app/pkg/metrics"
)

// Validation bounds for incoming samples.
const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
	maxAccuracyM = 10000.0
)

// IngestRequest is a transport-agnostic inbound sample. Required
// numeric fields are pointers so "absent" and "zero" stay distinct.
type IngestRequest struct {
	TrackingID    string
	SessionID     string
	Latitude      *float64
	Longitude     *float64
	Accuracy      *float64
	Speed         *float64
	Heading       *float64
	Altitude      *float64
	BatteryLevel  *float64
	NetworkType   string
	UserAgent     string
	OriginAddress string
	CapturedAt    time.Time // zero means "stamp on receipt"
}

// Accepted is the result of a successful ingest.
type Accepted struct {
	SampleID   int64
	TrackingID string
	SessionID  string
	Duplicate  bool
	Timestamp  time.Time
}

// Service implements the ingestion pipeline and the read surface
// consumed by the HTTP and MQTT adapters.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	sessions *session.Manager
	router   *fanout.Router
	deduper  dedupe.Deduper
	pool     *worker.Pool
	analyzer *route.Analyzer

	workerCount  int
	queueSize    int
	dedupeSize   int
	stopGap      time.Duration
	historyLimit int

	started bool
	now     func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing datastore. Required before Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithWorkerCount sets the number of dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds each dispatch worker's queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the duplicate-sample cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStopGap sets the route analyzer's stop detection threshold.
func WithStopGap(gap time.Duration) Option {
	return func(s *Service) {
		if gap > 0 {
			s.stopGap = gap
		}
	}
}

// WithHistoryLimit caps history queries.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  4,
		queueSize:    10000,
		dedupeSize:   50000,
		stopGap:      5 * time.Minute,
		historyLimit: 10000,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Named("pipeline")
	}

	s.sessions = session.NewManager(s.store, session.WithClock(s.now))
	s.router = fanout.NewRouter()
	s.deduper = dedupe.NewInMemory(dedupe.WithMaxSize(s.dedupeSize))
	s.analyzer = route.New(route.WithStopGap(s.stopGap))
	s.pool = worker.NewPool(s.sessions, s.store, s.router,
		worker.WithWorkerCount(s.workerCount),
		worker.WithQueueSize(s.queueSize),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ingestion pipeline started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop gracefully shuts the pipeline down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.pool.Stop()
	if s.store != nil {
		_ = s.store.Close()
	}
	s.started = false
	s.logger.Info(context.Background(), "ingestion pipeline stopped")
}

// Router exposes the fan-out router for subscription transports.
func (s *Service) Router() *fanout.Router {
	return s.router
}

// Ingest validates, persists and forwards one location sample.
//
// Validation is fail-fast, first failure wins: missing fields, then
// coordinate ranges, then accuracy range, then session presence. A
// sample for an unknown link returns repository.ErrNotFound; an
// inactive link is rejected as a validation failure. A saturated
// dispatch lane rejects with ErrBackpressure before anything is
// persisted, so a client retry is safe. Persistence
// failures surface wrapped repository.ErrStorage and nothing is
// published. Fan-out and session bookkeeping run off this path and can
// never fail an accepted sample.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (Accepted, error) {
	if err := validate(req); err != nil {
		metrics.RecordSampleRejected(reasonOf(err))
		return Accepted{}, err
	}

	link, err := s.store.GetLink(ctx, req.TrackingID)
	if err != nil {
		metrics.RecordSampleRejected("unknown link")
		return Accepted{}, fmt.Errorf("ingest: %w", err)
	}
	if !link.Active {
		metrics.RecordSampleRejected("link inactive")
		return Accepted{}, invalid("link inactive")
	}

	// Admission control before anything durable happens: a saturated
	// dispatch lane means the real-time path cannot keep up with this
	// link, and the client should back off and retry.
	if s.pool.Congested(ctx, req.TrackingID) {
		metrics.RecordSampleRejected("backpressure")
		return Accepted{}, fmt.Errorf("ingest: %w", ErrBackpressure)
	}

	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	capturedAt = capturedAt.UTC()

	key := dedupe.SampleKey(req.SessionID, capturedAt)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSampleDuplicate()
		s.logger.Debug(ctx, "duplicate sample suppressed",
			logger.String("sessionID", req.SessionID),
		)
		return Accepted{
			TrackingID: req.TrackingID,
			SessionID:  req.SessionID,
			Duplicate:  true,
			Timestamp:  capturedAt,
		}, nil
	}

	sample := &model.LocationSample{
		TrackingID:    req.TrackingID,
		SessionID:     req.SessionID,
		Latitude:      *req.Latitude,
		Longitude:     *req.Longitude,
		AccuracyM:     *req.Accuracy,
		SpeedMPS:      req.Speed,
		HeadingDeg:    req.Heading,
		AltitudeM:     req.Altitude,
		BatteryLevel:  req.BatteryLevel,
		NetworkType:   req.NetworkType,
		UserAgent:     req.UserAgent,
		OriginAddress: req.OriginAddress,
		CapturedAt:    capturedAt,
	}

	id, err := s.store.AppendSample(ctx, sample)
	if err != nil {
		// Forget the key so a retry of this fix is not treated as a
		// duplicate of a sample that never landed.
		s.deduper.Unrecord(ctx, key)
		metrics.RecordStorageError()
		return Accepted{}, fmt.Errorf("ingest: %w", err)
	}

	job := queue.Job{
		TrackingID: req.TrackingID,
		SessionID:  req.SessionID,
		Event:      model.EventFromSample(sample),
	}
	if !s.pool.Dispatch(ctx, job) {
		// The sample is durable; only the real-time path is saturated.
		// Keep the counter invariant by recording inline.
		s.sessions.RecordSample(ctx, req.SessionID)
		s.logger.Warn(ctx, "dispatch queue full, update event dropped",
			logger.String("trackingID", req.TrackingID),
		)
	}

	metrics.RecordSampleIngested()
	return Accepted{
		SampleID:   id,
		TrackingID: req.TrackingID,
		SessionID:  req.SessionID,
		Timestamp:  capturedAt,
	}, nil
}

func validate(req *IngestRequest) error {
	switch {
	case req.Latitude == nil || req.Longitude == nil || req.Accuracy == nil:
		return invalid("missing fields")
	case *req.Latitude < minLatitude || *req.Latitude > maxLatitude ||
		*req.Longitude < minLongitude || *req.Longitude > maxLongitude:
		return invalid("invalid coordinates")
	case *req.Accuracy < 0 || *req.Accuracy > maxAccuracyM:
		return invalid("invalid accuracy")
	case req.SessionID == "":
		return invalid("missing session")
	}
	return nil
}

func reasonOf(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return "unknown"
}

// StartSession opens a new tracking session under trackingID.
func (s *Service) StartSession(ctx context.Context, trackingID, device string) (string, error) {
	if _, err := s.store.GetLink(ctx, trackingID); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return s.sessions.Start(ctx, trackingID, device)
}

// StopSession latches a session inactive.
func (s *Service) StopSession(ctx context.Context, sessionID string) error {
	return s.sessions.Stop(ctx, sessionID)
}

// GetSession returns session bookkeeping state.
func (s *Service) GetSession(ctx context.Context, sessionID string) (model.TrackingSession, error) {
	return s.sessions.Get(ctx, sessionID)
}

// CreateLink registers a new tracking link and returns it.
func (s *Service) CreateLink(ctx context.Context, name string, intervalSeconds, maxDurationMins int) (model.TrackingLink, error) {
	link := model.TrackingLink{
		ID:              uuid.NewString(),
		Name:            name,
		Active:          true,
		IntervalSeconds: intervalSeconds,
		MaxDurationMins: maxDurationMins,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateLink(ctx, &link); err != nil {
		return model.TrackingLink{}, fmt.Errorf("create link: %w", err)
	}
	return link, nil
}

// GetLink reads a tracking link.
func (s *Service) GetLink(ctx context.Context, id string) (model.TrackingLink, error) {
	return s.store.GetLink(ctx, id)
}

// History returns the persisted samples of a link, oldest first.
func (s *Service) History(ctx context.Context, trackingID string, limit int) ([]model.LocationSample, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	if _, err := s.store.GetLink(ctx, trackingID); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return s.store.SamplesByLink(ctx, trackingID, limit)
}

// AnalyzeRoute runs the route analyzer over a link's full history.
func (s *Service) AnalyzeRoute(ctx context.Context, trackingID string) (route.Summary, error) {
	samples, err := s.History(ctx, trackingID, 0)
	if err != nil {
		return route.Summary{}, err
	}
	return s.analyzer.Analyze(samples), nil
}

// Analyze runs the route analyzer over an explicit sample sequence.
func (s *Service) Analyze(samples []model.LocationSample) route.Summary {
	return s.analyzer.Analyze(samples)
}

// CreateGeofence registers a circular region on a link.
func (s *Service) CreateGeofence(ctx context.Context, fence *model.Geofence) error {
	if _, err := s.store.GetLink(ctx, fence.TrackingID); err != nil {
		return fmt.Errorf("create geofence: %w", err)
	}
	if fence.ID == "" {
		fence.ID = uuid.NewString()
	}
	if err := s.store.CreateGeofence(ctx, fence); err != nil {
		return fmt.Errorf("create geofence: %w", err)
	}
	return nil
}

// Geofences lists a link's geofences.
func (s *Service) Geofences(ctx context.Context, trackingID string, activeOnly bool) ([]model.Geofence, error) {
	return s.store.GeofencesByLink(ctx, trackingID, activeOnly)
}

// GetStats returns a service snapshot for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		active := s.store.CountActiveSessions(ctx)
		stats["activeSessions"] = active
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateActiveSessions(active)
	}
	return stats
}
