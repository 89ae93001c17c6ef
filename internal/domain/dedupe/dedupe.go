// Package dedupe tracks recently seen sample keys so client retries do
// not double-append to the location history.
//
// Devices with flaky connectivity resubmit fixes; the key for a sample
// is its session id plus capture timestamp, which is stable across
// retries of the same fix.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxSize = 50000

// SampleKey builds the dedupe key for a sample.
func SampleKey(sessionID string, capturedAt time.Time) string {
	return fmt.Sprintf("%s@%d", sessionID, capturedAt.UnixMilli())
}

// Deduper records seen sample keys for at-most-once persistence.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records
	// it if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so the sample can be resubmitted. Used
	// when a sample was marked seen but failed to persist.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper is a bounded seen-set with FIFO eviction. A ring of
// keys mirrors the map so the oldest entry can be evicted in O(1).
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int // ring slot the next insert overwrites
	maxSize int
	size    atomic.Int64
}

// Option applies a configuration option to the deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of keys kept in memory.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}

// NewInMemory creates a bounded in-memory deduper.
func NewInMemory(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.maxSize)
	d.ring = make([]string, d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	// Evict whatever occupies the next ring slot.
	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
		d.size.Add(-1)
	}
	d.ring[d.next] = key
	d.next = (d.next + 1) % d.maxSize
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; !ok {
		return
	}
	delete(d.seen, key)
	d.size.Add(-1)
	// Leave the ring slot in place; eviction tolerates stale keys.
	for i := range d.ring {
		if d.ring[i] == key {
			d.ring[i] = ""
			break
		}
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
