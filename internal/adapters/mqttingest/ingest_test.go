package mqttingest

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/legalize2/location-tracker-app/internal/app"
	"github.com/legalize2/location-tracker-app/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakePipeline struct {
	requests []*service.IngestRequest
	result   service.Accepted
	err      error
}

func (f *fakePipeline) Ingest(_ context.Context, req *service.IngestRequest) (service.Accepted, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func TestTrackingIDFromTopic(t *testing.T) {
	Convey("Given the tracker topic layout", t, func() {
		cases := []struct {
			topic string
			want  string
			ok    bool
		}{
			{"tracker/abc-123/location", "abc-123", true},
			{"tracker/abc/extra/location", "", false},
			{"tracker//location", "", false},
			{"tracker/abc-123/status", "", false},
			{"other/abc-123/location", "", false},
			{"tracker/abc-123", "", false},
		}
		for _, c := range cases {
			id, ok := trackingIDFromTopic(c.topic, "tracker")
			So(ok, ShouldEqual, c.ok)
			So(id, ShouldEqual, c.want)
		}
	})
}

func TestHandleMessage(t *testing.T) {
	Convey("Given an ingestor over a fake pipeline", t, func() {
		pipeline := &fakePipeline{}
		ing := New(pipeline, "tcp://localhost:1883", "tracker")
		ctx := context.Background()

		Convey("a well-formed payload reaches the pipeline", func() {
			body := []byte(`{
				"sessionId": "sess-1",
				"latitude": 41.0082,
				"longitude": 28.9784,
				"accuracy": 12.5,
				"capturedAt": "2025-06-01T09:00:00Z"
			}`)
			ing.handleMessage(ctx, "tracker/link-1/location", body)

			So(len(pipeline.requests), ShouldEqual, 1)
			req := pipeline.requests[0]
			So(req.TrackingID, ShouldEqual, "link-1")
			So(req.SessionID, ShouldEqual, "sess-1")
			So(*req.Latitude, ShouldAlmostEqual, 41.0082)
			So(*req.Accuracy, ShouldAlmostEqual, 12.5)
			So(req.CapturedAt, ShouldEqual, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		})

		Convey("a payload without capturedAt is forwarded unstamped", func() {
			ing.handleMessage(ctx, "tracker/link-1/location",
				[]byte(`{"sessionId":"s","latitude":1,"longitude":2,"accuracy":3}`))
			So(len(pipeline.requests), ShouldEqual, 1)
			So(pipeline.requests[0].CapturedAt.IsZero(), ShouldBeTrue)
		})

		Convey("malformed JSON is dropped before the pipeline", func() {
			ing.handleMessage(ctx, "tracker/link-1/location", []byte(`{not json`))
			So(pipeline.requests, ShouldBeEmpty)
		})

		Convey("an invalid capturedAt is dropped before the pipeline", func() {
			ing.handleMessage(ctx, "tracker/link-1/location",
				[]byte(`{"sessionId":"s","latitude":1,"longitude":2,"accuracy":3,"capturedAt":"noon"}`))
			So(pipeline.requests, ShouldBeEmpty)
		})

		Convey("a message on a foreign topic is ignored", func() {
			ing.handleMessage(ctx, "tracker/link-1/status", []byte(`{}`))
			So(pipeline.requests, ShouldBeEmpty)
		})

		Convey("pipeline rejections are swallowed", func() {
			pipeline.err = errors.New("validation failed")
			ing.handleMessage(ctx, "tracker/link-1/location",
				[]byte(`{"sessionId":"s","latitude":1,"longitude":2,"accuracy":3}`))
			So(len(pipeline.requests), ShouldEqual, 1)
		})
	})
}
