// Package fanout routes real-time update events to the subscribers of
// a tracking link.
package fanout

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/pkg/logger"
	"github.com/legalize2/location-tracker-app/pkg/metrics"
)

const defaultShardCount = 16

// Subscriber is one connection able to receive update events. Send must
// not block the router; transport adapters buffer internally and return
// an error when the connection is dead or saturated.
type Subscriber interface {
	ID() string
	Send(event model.UpdateEvent) error
}

// Router maintains per-link subscriber sets and delivers events to the
// membership as of each Publish call. Delivery is best-effort: a failed
// send is logged and never fails Publish, and a link with no
// subscribers drops the event silently.
//
// Link sets are sharded so publishes on unrelated links never contend
// on one lock.
type Router struct {
	shards []*shard

	mu      sync.Mutex                     // guards memberships
	members map[string]map[string]struct{} // subscriber id -> link ids

	logger logger.Logger
}

type shard struct {
	mu    sync.RWMutex
	links map[string]map[string]Subscriber // link id -> subscriber id -> subscriber
}

// Option applies a configuration option to the Router.
type Option func(*Router)

// WithShardCount sets the number of link-set shards.
func WithShardCount(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.shards = make([]*shard, n)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates an empty router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		shards:  make([]*shard, defaultShardCount),
		members: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range r.shards {
		r.shards[i] = &shard{links: make(map[string]map[string]Subscriber)}
	}
	if r.logger == nil {
		r.logger = logger.Named("fanout")
	}
	return r
}

func (r *Router) shardFor(linkID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(linkID))
	return r.shards[int(h.Sum32())%len(r.shards)]
}

// Subscribe adds sub to the link's subscriber set. Re-subscribing is a
// no-op beyond confirming membership. A subscriber may hold
// subscriptions to any number of links at once.
func (r *Router) Subscribe(sub Subscriber, linkID string) {
	sh := r.shardFor(linkID)
	sh.mu.Lock()
	set, ok := sh.links[linkID]
	if !ok {
		set = make(map[string]Subscriber)
		sh.links[linkID] = set
	}
	set[sub.ID()] = sub
	sh.mu.Unlock()

	r.mu.Lock()
	links, ok := r.members[sub.ID()]
	if !ok {
		links = make(map[string]struct{})
		r.members[sub.ID()] = links
	}
	links[linkID] = struct{}{}
	r.updateGauges()
	r.mu.Unlock()
}

// Unsubscribe removes sub from the link's set; no-op if absent.
func (r *Router) Unsubscribe(sub Subscriber, linkID string) {
	r.removeMembership(sub.ID(), linkID)

	r.mu.Lock()
	if links, ok := r.members[sub.ID()]; ok {
		delete(links, linkID)
		if len(links) == 0 {
			delete(r.members, sub.ID())
		}
	}
	r.updateGauges()
	r.mu.Unlock()
}

// OnDisconnect removes sub from every link set it belonged to. Safe to
// call for a subscriber that joined nothing; the connection teardown
// path calls it exactly once.
func (r *Router) OnDisconnect(sub Subscriber) {
	r.mu.Lock()
	links := r.members[sub.ID()]
	delete(r.members, sub.ID())
	linkIDs := make([]string, 0, len(links))
	for id := range links {
		linkIDs = append(linkIDs, id)
	}
	r.updateGauges()
	r.mu.Unlock()

	for _, id := range linkIDs {
		r.removeMembership(sub.ID(), id)
	}
}

func (r *Router) removeMembership(subID, linkID string) {
	sh := r.shardFor(linkID)
	sh.mu.Lock()
	if set, ok := sh.links[linkID]; ok {
		delete(set, subID)
		if len(set) == 0 {
			delete(sh.links, linkID)
		}
	}
	sh.mu.Unlock()
}

// Publish delivers event to every subscriber of linkID as of this call.
// A failed send to one subscriber is isolated: it is logged, counted
// and never prevents delivery to the rest or fails the publish.
func (r *Router) Publish(ctx context.Context, linkID string, event model.UpdateEvent) {
	sh := r.shardFor(linkID)
	sh.mu.RLock()
	set := sh.links[linkID]
	subs := make([]Subscriber, 0, len(set))
	for _, sub := range set {
		subs = append(subs, sub)
	}
	sh.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			metrics.RecordFanoutDrop()
			r.logger.Debug(ctx, "dropped event for subscriber",
				logger.String("subscriberID", sub.ID()),
				logger.String("trackingID", linkID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordFanoutDelivery()
	}
}

// SubscriberCount returns the number of subscribers currently joined to
// linkID.
func (r *Router) SubscriberCount(linkID string) int {
	sh := r.shardFor(linkID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.links[linkID])
}

// updateGauges refreshes connection gauges; callers hold r.mu.
func (r *Router) updateGauges() {
	links := make(map[string]struct{})
	for _, set := range r.members {
		for id := range set {
			links[id] = struct{}{}
		}
	}
	metrics.UpdateSubscriberCount(len(r.members))
	metrics.UpdateSubscribedLinkCount(len(links))
}
