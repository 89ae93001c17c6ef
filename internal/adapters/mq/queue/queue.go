// Package queue provides the bounded in-memory job queue feeding the
// post-persist dispatch workers.
package queue

import (
	"context"
	"sync"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/pkg/metrics"
)

const defaultCapacity = 10000

// Job carries everything the dispatch workers need for one accepted
// sample: bookkeeping keys plus the outbound event.
type Job struct {
	TrackingID string
	SessionID  string
	Event      model.UpdateEvent
}

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a job; returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns the channel jobs arrive on. The channel closes
	// when the queue closes.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of queued jobs.
	Len(ctx context.Context) int

	// Full reports whether the queue is at capacity.
	Full(ctx context.Context) bool

	// Close stops the queue; no further enqueues are accepted.
	Close() error
}

// InMemory implements Queue on a buffered channel.
type InMemory struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to the queue.
type Option func(*InMemory)

// WithCapacity bounds the queue.
func WithCapacity(n int) Option {
	return func(q *InMemory) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(opts ...Option) *InMemory {
	q := &InMemory{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateQueueCapacity(q.capacity)
	return q
}

func (q *InMemory) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

func (q *InMemory) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

func (q *InMemory) Len(_ context.Context) int {
	return len(q.jobs)
}

func (q *InMemory) Full(_ context.Context) bool {
	return len(q.jobs) >= q.capacity
}

func (q *InMemory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
