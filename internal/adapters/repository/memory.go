package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
)

const defaultShardCount = 8

// MemoryStore implements Store entirely in memory. It backs tests and
// zero-config runs. Data is sharded by key so unrelated tracking links
// never contend on one lock.
type MemoryStore struct {
	shardCount   int
	links        []*linkShard
	sessions     []*sessionShard
	nextSampleID atomic.Int64
}

type linkShard struct {
	mu       sync.RWMutex
	links    map[string]model.TrackingLink
	samples  map[string][]model.LocationSample // keyed by tracking id
	fences   map[string][]model.Geofence
}

type sessionShard struct {
	mu       sync.Mutex
	sessions map[string]*model.TrackingSession
	samples  map[string][]model.LocationSample // keyed by session id
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithShardCount sets the number of shards.
func WithShardCount(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(s)
	}
	s.links = make([]*linkShard, s.shardCount)
	s.sessions = make([]*sessionShard, s.shardCount)
	for i := 0; i < s.shardCount; i++ {
		s.links[i] = &linkShard{
			links:   make(map[string]model.TrackingLink),
			samples: make(map[string][]model.LocationSample),
			fences:  make(map[string][]model.Geofence),
		}
		s.sessions[i] = &sessionShard{
			sessions: make(map[string]*model.TrackingSession),
			samples:  make(map[string][]model.LocationSample),
		}
	}
	return s
}

func (s *MemoryStore) linkShardFor(key string) *linkShard {
	return s.links[shardIndex(key, s.shardCount)]
}

func (s *MemoryStore) sessionShardFor(key string) *sessionShard {
	return s.sessions[shardIndex(key, s.shardCount)]
}

func shardIndex(key string, count int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % count
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateLink(_ context.Context, link *model.TrackingLink) error {
	sh := s.linkShardFor(link.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.links[link.ID] = *link
	return nil
}

func (s *MemoryStore) GetLink(_ context.Context, id string) (model.TrackingLink, error) {
	sh := s.linkShardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	link, ok := sh.links[id]
	if !ok {
		return model.TrackingLink{}, fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	return link, nil
}

func (s *MemoryStore) DeactivateLink(_ context.Context, id string) error {
	sh := s.linkShardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	link, ok := sh.links[id]
	if !ok {
		return fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	link.Active = false
	sh.links[id] = link
	return nil
}

func (s *MemoryStore) AppendSample(_ context.Context, sample *model.LocationSample) (int64, error) {
	stored := *sample
	stored.ID = s.nextSampleID.Add(1)

	lsh := s.linkShardFor(stored.TrackingID)
	lsh.mu.Lock()
	lsh.samples[stored.TrackingID] = append(lsh.samples[stored.TrackingID], stored)
	lsh.mu.Unlock()

	ssh := s.sessionShardFor(stored.SessionID)
	ssh.mu.Lock()
	ssh.samples[stored.SessionID] = append(ssh.samples[stored.SessionID], stored)
	ssh.mu.Unlock()

	return stored.ID, nil
}

func (s *MemoryStore) SamplesByLink(_ context.Context, trackingID string, limit int) ([]model.LocationSample, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	sh := s.linkShardFor(trackingID)
	sh.mu.RLock()
	src := sh.samples[trackingID]
	out := make([]model.LocationSample, len(src))
	copy(out, src)
	sh.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SamplesBySession(_ context.Context, sessionID string) ([]model.LocationSample, error) {
	sh := s.sessionShardFor(sessionID)
	sh.mu.Lock()
	src := sh.samples[sessionID]
	out := make([]model.LocationSample, len(src))
	copy(out, src)
	sh.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, session *model.TrackingSession) error {
	sh := s.sessionShardFor(session.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	stored := *session
	sh.sessions[session.ID] = &stored
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (model.TrackingSession, error) {
	sh := s.sessionShardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return model.TrackingSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return *sess, nil
}

// TouchSession mutates under the shard lock, so concurrent increments
// on the same session never lose updates.
func (s *MemoryStore) TouchSession(_ context.Context, id string, at time.Time) error {
	sh := s.sessionShardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.TotalLocations++
	if at.After(sess.LastUpdateAt) {
		sess.LastUpdateAt = at
	}
	return nil
}

func (s *MemoryStore) EndSession(_ context.Context, id string) error {
	sh := s.sessionShardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.Active = false
	return nil
}

func (s *MemoryStore) CountActiveSessions(_ context.Context) int {
	var n int
	for _, sh := range s.sessions {
		sh.mu.Lock()
		for _, sess := range sh.sessions {
			if sess.Active {
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) CreateGeofence(_ context.Context, fence *model.Geofence) error {
	sh := s.linkShardFor(fence.TrackingID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.fences[fence.TrackingID] = append(sh.fences[fence.TrackingID], *fence)
	return nil
}

func (s *MemoryStore) GeofencesByLink(_ context.Context, trackingID string, activeOnly bool) ([]model.Geofence, error) {
	sh := s.linkShardFor(trackingID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var out []model.Geofence
	for _, f := range sh.fences[trackingID] {
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
