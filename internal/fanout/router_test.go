package fanout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/legalize2/location-tracker-app/internal/domain/model"
	"github.com/legalize2/location-tracker-app/internal/fanout"
	"github.com/legalize2/location-tracker-app/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

// recordingSub collects delivered events; optionally fails every send.
type recordingSub struct {
	id     string
	fail   bool
	mu     sync.Mutex
	events []model.UpdateEvent
}

func (s *recordingSub) ID() string { return s.id }

func (s *recordingSub) Send(e model.UpdateEvent) error {
	if s.fail {
		return errors.New("connection gone")
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *recordingSub) received() []model.UpdateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UpdateEvent, len(s.events))
	copy(out, s.events)
	return out
}

func event(lat float64) model.UpdateEvent {
	return model.UpdateEvent{Latitude: lat, Longitude: 29, AccuracyM: 5}
}

func TestSubscribePublish(t *testing.T) {
	Convey("Given a router and a subscriber", t, func() {
		ctx := context.Background()
		router := fanout.NewRouter()
		sub := &recordingSub{id: "conn-1"}

		Convey("When events are published before subscribing", func() {
			router.Publish(ctx, "link-1", event(1))
			router.Subscribe(sub, "link-1")
			router.Publish(ctx, "link-1", event(2))

			Convey("Then only events after subscription arrive, in order", func() {
				got := sub.received()
				So(got, ShouldHaveLength, 1)
				So(got[0].Latitude, ShouldEqual, 2)
			})
		})

		Convey("When subscribing twice", func() {
			router.Subscribe(sub, "link-1")
			router.Subscribe(sub, "link-1")
			router.Publish(ctx, "link-1", event(1))

			Convey("Then delivery happens once", func() {
				So(sub.received(), ShouldHaveLength, 1)
				So(router.SubscriberCount("link-1"), ShouldEqual, 1)
			})
		})

		Convey("When subscribed to a different link", func() {
			router.Subscribe(sub, "link-2")
			router.Publish(ctx, "link-1", event(1))

			Convey("Then nothing is delivered", func() {
				So(sub.received(), ShouldBeEmpty)
			})
		})

		Convey("When publishing to a link with zero subscribers", func() {
			Convey("Then the event is dropped silently", func() {
				So(func() { router.Publish(ctx, "empty-link", event(1)) }, ShouldNotPanic)
			})
		})
	})
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	Convey("Given two subscribers on one link", t, func() {
		ctx := context.Background()
		router := fanout.NewRouter()
		a := &recordingSub{id: "conn-a"}
		b := &recordingSub{id: "conn-b"}
		router.Subscribe(a, "link-1")
		router.Subscribe(b, "link-1")

		Convey("When one unsubscribes", func() {
			router.Unsubscribe(a, "link-1")
			router.Publish(ctx, "link-1", event(1))

			Convey("Then only the remaining subscriber receives", func() {
				So(a.received(), ShouldBeEmpty)
				So(b.received(), ShouldHaveLength, 1)
			})
		})

		Convey("When unsubscribing a link never joined", func() {
			Convey("Then it is a no-op", func() {
				So(func() { router.Unsubscribe(a, "other-link") }, ShouldNotPanic)
				So(router.SubscriberCount("link-1"), ShouldEqual, 2)
			})
		})

		Convey("When one disconnects after joining several links", func() {
			router.Subscribe(a, "link-2")
			router.OnDisconnect(a)
			router.Publish(ctx, "link-1", event(1))
			router.Publish(ctx, "link-2", event(2))

			Convey("Then it is removed from every set", func() {
				So(a.received(), ShouldBeEmpty)
				So(b.received(), ShouldHaveLength, 1)
				So(router.SubscriberCount("link-2"), ShouldEqual, 0)
			})
		})

		Convey("When a subscriber that joined nothing disconnects", func() {
			c := &recordingSub{id: "conn-c"}

			Convey("Then nothing breaks", func() {
				So(func() { router.OnDisconnect(c) }, ShouldNotPanic)
			})
		})
	})
}

func TestFailedDeliveryIsolation(t *testing.T) {
	Convey("Given a dead subscriber next to a healthy one", t, func() {
		ctx := context.Background()
		router := fanout.NewRouter()
		dead := &recordingSub{id: "conn-dead", fail: true}
		live := &recordingSub{id: "conn-live"}
		router.Subscribe(dead, "link-1")
		router.Subscribe(live, "link-1")

		Convey("When an event is published", func() {
			router.Publish(ctx, "link-1", event(1))

			Convey("Then the healthy subscriber still receives it", func() {
				So(live.received(), ShouldHaveLength, 1)
			})
		})
	})
}

func TestConcurrentMembership(t *testing.T) {
	Convey("Given a router under concurrent churn", t, func() {
		ctx := context.Background()
		router := fanout.NewRouter(fanout.WithShardCount(8))

		Convey("When subscribers join, publish and leave in parallel", func() {
			const n = 50
			var wg sync.WaitGroup
			wg.Add(n * 2)
			subs := make([]*recordingSub, n)
			for i := 0; i < n; i++ {
				subs[i] = &recordingSub{id: string(rune('a'+i%26)) + "-conn"}
			}
			for i := 0; i < n; i++ {
				go func(i int) {
					defer wg.Done()
					sub := &recordingSub{id: subs[i].id}
					router.Subscribe(sub, "link-1")
					router.Unsubscribe(sub, "link-1")
					router.OnDisconnect(sub)
				}(i)
				go func() {
					defer wg.Done()
					router.Publish(ctx, "link-1", event(1))
				}()
			}
			wg.Wait()

			Convey("Then the router ends empty and consistent", func() {
				So(router.SubscriberCount("link-1"), ShouldEqual, 0)
			})
		})
	})
}
