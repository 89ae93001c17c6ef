package dedupe_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/legalize2/location-tracker-app/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSeenAndRecord(t *testing.T) {
	Convey("Given an in-memory deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemory()

		Convey("When a key is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "sess-1@1000")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a second submission is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "sess-1@1000"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "sess-1@1000")
			d.Unrecord(ctx, "sess-1@1000")

			Convey("Then it can be recorded again", func() {
				So(d.SeenAndRecord(ctx, "sess-1@1000"), ShouldBeFalse)
			})
		})

		Convey("When unrecording a key that was never seen", func() {
			Convey("Then nothing happens", func() {
				So(func() { d.Unrecord(ctx, "ghost") }, ShouldNotPanic)
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestBoundedEviction(t *testing.T) {
	Convey("Given a deduper bounded to three keys", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemory(dedupe.WithMaxSize(3))

		Convey("When four keys are recorded", func() {
			for i := 0; i < 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("sess-%d@0", i))
			}

			Convey("Then the oldest key was evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "sess-0@0"), ShouldBeFalse)
			})

			Convey("And the newest keys are still tracked", func() {
				So(d.SeenAndRecord(ctx, "sess-3@0"), ShouldBeTrue)
			})
		})
	})
}

func TestSampleKey(t *testing.T) {
	Convey("Given a session id and capture time", t, func() {
		at := time.UnixMilli(1717236000000).UTC()

		Convey("When building the dedupe key", func() {
			key := dedupe.SampleKey("sess-9", at)

			Convey("Then it is stable across retries of the same fix", func() {
				So(key, ShouldEqual, "sess-9@1717236000000")
				So(dedupe.SampleKey("sess-9", at), ShouldEqual, key)
			})
		})
	})
}
