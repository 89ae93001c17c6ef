package queue_test

import (
	"context"
	"testing"

	"github.com/legalize2/location-tracker-app/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a bounded in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemory(queue.WithCapacity(2))

		Convey("When jobs are enqueued within capacity", func() {
			ok1 := q.Enqueue(ctx, queue.Job{TrackingID: "link-1"})
			ok2 := q.Enqueue(ctx, queue.Job{TrackingID: "link-2"})

			Convey("Then they are accepted and counted", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And a third enqueue is refused", func() {
				So(q.Enqueue(ctx, queue.Job{TrackingID: "link-3"}), ShouldBeFalse)
			})

			Convey("And dequeue yields jobs in order", func() {
				ch := q.Dequeue(ctx)
				j1 := <-ch
				j2 := <-ch
				So(j1.TrackingID, ShouldEqual, "link-1")
				So(j2.TrackingID, ShouldEqual, "link-2")
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueues are refused", func() {
				So(q.Enqueue(ctx, queue.Job{}), ShouldBeFalse)
			})

			Convey("And the dequeue channel drains and closes", func() {
				_, open := <-q.Dequeue(ctx)
				So(open, ShouldBeFalse)
			})

			Convey("And closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
