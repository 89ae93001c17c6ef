// Package worker runs the post-persist side effects of accepted
// samples: session bookkeeping, geofence evaluation and fan-out.
package worker

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/legalize2/location-tracker-app/internal/adapters/mq/queue"
	"github.com/legalize2/location-tracker-app/internal/domain/geofence"
	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/pkg/logger"
	"github.com/legalize2/location-tracker-app/pkg/metrics"
)

const (
	defaultWorkerCount    = 4
	workerShutdownTimeout = 5 * time.Second
)

// Recorder updates session bookkeeping for an accepted sample.
// Best-effort; implementations never return an error.
type Recorder interface {
	RecordSample(ctx context.Context, sessionID string)
}

// FenceSource reads the active geofences of a tracking link.
type FenceSource interface {
	GeofencesByLink(ctx context.Context, trackingID string, activeOnly bool) ([]model.Geofence, error)
}

// Publisher fans an event out to the subscribers of a link.
type Publisher interface {
	Publish(ctx context.Context, linkID string, event model.UpdateEvent)
}

// Pool runs a fixed set of workers, each owning its own job queue.
// Jobs are routed to a worker by hashing the tracking-link id, so the
// events of one link are always processed by the same worker and reach
// its subscribers in dispatch order.
type Pool struct {
	queues    []*queue.InMemory
	recorder  Recorder
	fences    FenceSource
	publisher Publisher

	done   []chan struct{}
	logger logger.Logger
}

// Option applies a configuration option to the Pool.
type Option func(*poolConfig)

type poolConfig struct {
	workerCount int
	queueSize   int
	logger      logger.Logger
}

// WithWorkerCount sets the number of workers (and queues).
func WithWorkerCount(n int) Option {
	return func(c *poolConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithQueueSize bounds each worker's queue.
func WithQueueSize(n int) Option {
	return func(c *poolConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *poolConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewPool creates a dispatch pool.
func NewPool(recorder Recorder, fences FenceSource, publisher Publisher, opts ...Option) *Pool {
	cfg := poolConfig{workerCount: defaultWorkerCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Named("dispatch")
	}

	p := &Pool{
		queues:    make([]*queue.InMemory, cfg.workerCount),
		recorder:  recorder,
		fences:    fences,
		publisher: publisher,
		done:      make([]chan struct{}, cfg.workerCount),
		logger:    cfg.logger,
	}
	for i := range p.queues {
		var qopts []queue.Option
		if cfg.queueSize > 0 {
			qopts = append(qopts, queue.WithCapacity(cfg.queueSize))
		}
		p.queues[i] = queue.NewInMemory(qopts...)
		p.done[i] = make(chan struct{})
	}
	metrics.UpdateWorkerCount(cfg.workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for i := range p.queues {
		go p.run(ctx, i)
	}
}

// Dispatch routes a job to its link's worker. Returns false on
// backpressure (that worker's queue is full) or after shutdown.
func (p *Pool) Dispatch(ctx context.Context, j queue.Job) bool {
	return p.queueFor(j.TrackingID).Enqueue(ctx, j)
}

// Congested reports whether the worker responsible for trackingID has
// a full queue. Advisory: a dispatch may still race a drain or a fill.
func (p *Pool) Congested(ctx context.Context, trackingID string) bool {
	return p.queueFor(trackingID).Full(ctx)
}

// Stop closes all queues and waits for workers to drain, bounded by a
// per-worker timeout.
func (p *Pool) Stop() {
	for _, q := range p.queues {
		_ = q.Close()
	}
	for _, done := range p.done {
		select {
		case <-done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

func (p *Pool) queueFor(trackingID string) *queue.InMemory {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingID))
	return p.queues[int(h.Sum32())%len(p.queues)]
}

func (p *Pool) run(ctx context.Context, idx int) {
	defer close(p.done[idx])

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queues[idx].Dequeue(ctx):
			if !ok {
				return
			}
			p.process(ctx, job)
		}
	}
}

// process runs the side effects for one accepted sample. Every failure
// here is best-effort territory: the sample is already persisted and
// acknowledged, so nothing may escalate.
func (p *Pool) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	defer func() {
		metrics.RecordDispatchLatency(float64(time.Since(start).Milliseconds()))
	}()

	p.recorder.RecordSample(ctx, job.SessionID)

	p.evaluateFences(ctx, job)

	p.publisher.Publish(ctx, job.TrackingID, job.Event)
}

func (p *Pool) evaluateFences(ctx context.Context, job queue.Job) {
	fences, err := p.fences.GeofencesByLink(ctx, job.TrackingID, true)
	if err != nil {
		p.logger.Warn(ctx, "geofence lookup failed",
			logger.String("trackingID", job.TrackingID),
			logger.Error(err),
		)
		return
	}
	if len(fences) == 0 {
		return
	}

	point := geofence.Point{Latitude: job.Event.Latitude, Longitude: job.Event.Longitude}
	for _, trig := range geofence.Evaluate(point, fences) {
		metrics.RecordGeofenceTrigger()
		p.logger.Info(ctx, "geofence triggered",
			logger.String("trackingID", job.TrackingID),
			logger.String("geofenceID", trig.GeofenceID),
			logger.String("action", trig.Action),
			logger.Float64("distanceMeters", trig.DistanceMeters),
		)
	}
}
