package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/legalize2/location-tracker-app/internal/adapters/http/api"
	service "github.com/legalize2/location-tracker-app/internal/app"
	"github.com/legalize2/location-tracker-app/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()

	svc := service.New()
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start pipeline: %v", err)
	}
	t.Cleanup(svc.Stop)

	router := mux.NewRouter()
	api.NewServer(svc, svc).Register(context.Background(), router)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, svc
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestLinkEndpoints(t *testing.T) {
	Convey("Given a running API server", t, func() {
		ts, _ := newTestServer(t)

		Convey("creating a link returns 201 with an id", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/links", map[string]any{
				"name":            "delivery run",
				"intervalSeconds": 10,
			})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(body["id"], ShouldNotBeEmpty)
			So(body["active"], ShouldBeTrue)

			Convey("and the link can be fetched back", func() {
				id := body["id"].(string)
				resp, got := getJSON(t, ts.URL+"/api/v1/links/"+id)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(got["name"], ShouldEqual, "delivery run")
			})
		})

		Convey("creating a link without a name returns 400", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/links", map[string]any{})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, "bad_request")
		})

		Convey("fetching an unknown link returns 404", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/links/nope")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(body["code"], ShouldEqual, "not_found")
		})
	})
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given a server with one link", t, func() {
		ts, _ := newTestServer(t)

		_, link := postJSON(t, ts.URL+"/api/v1/links", map[string]any{"name": "trip"})
		linkID := link["id"].(string)

		Convey("a session can be started, read and stopped", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/sessions", map[string]any{
				"trackingId": linkID,
				"device":     "android",
			})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			sessionID := body["session_id"].(string)
			So(sessionID, ShouldNotBeEmpty)

			resp, got := getJSON(t, ts.URL+"/api/v1/sessions/"+sessionID)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(got["active"], ShouldBeTrue)
			So(got["tracking_id"], ShouldEqual, linkID)
			So(got["device"], ShouldEqual, "android")

			resp, _ = postJSON(t, ts.URL+"/api/v1/sessions/"+sessionID+"/stop", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			_, got = getJSON(t, ts.URL+"/api/v1/sessions/"+sessionID)
			So(got["active"], ShouldBeFalse)
		})

		Convey("starting a session for an unknown link returns 404", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/sessions", map[string]any{"trackingId": "nope"})
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("starting a session without a link returns 400", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/sessions", map[string]any{})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("stopping an unknown session returns 404", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/sessions/nope/stop", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLocationEndpoint(t *testing.T) {
	Convey("Given a server with a link and an active session", t, func() {
		ts, _ := newTestServer(t)

		_, link := postJSON(t, ts.URL+"/api/v1/links", map[string]any{"name": "trip"})
		linkID := link["id"].(string)
		_, sess := postJSON(t, ts.URL+"/api/v1/sessions", map[string]any{"trackingId": linkID})
		sessionID := sess["session_id"].(string)

		sample := map[string]any{
			"trackingId": linkID,
			"sessionId":  sessionID,
			"latitude":   41.0082,
			"longitude":  28.9784,
			"accuracy":   10.0,
			"capturedAt": time.Now().UTC().Format(time.RFC3339),
		}

		Convey("a valid sample is accepted with 202", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/locations", sample)
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			So(body["status"], ShouldEqual, "accepted")

			Convey("and resubmitting the same fix reports a duplicate with 200", func() {
				resp, body := postJSON(t, ts.URL+"/api/v1/locations", sample)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "duplicate")
				So(body["duplicate"], ShouldBeTrue)
			})

			Convey("and it shows up in the link history", func() {
				resp, got := getJSON(t, ts.URL+"/api/v1/links/"+linkID+"/history")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(got["count"], ShouldEqual, 1)
			})
		})

		Convey("out-of-range coordinates are rejected with 400", func() {
			bad := map[string]any{
				"trackingId": linkID,
				"sessionId":  sessionID,
				"latitude":   95.0,
				"longitude":  28.9784,
				"accuracy":   10.0,
			}
			resp, body := postJSON(t, ts.URL+"/api/v1/locations", bad)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, "validation_failed")
		})

		Convey("a sample for an unknown link returns 404", func() {
			bad := map[string]any{
				"trackingId": "nope",
				"sessionId":  sessionID,
				"latitude":   41.0,
				"longitude":  28.9,
				"accuracy":   10.0,
			}
			resp, _ := postJSON(t, ts.URL+"/api/v1/locations", bad)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("a malformed capturedAt returns 400", func() {
			bad := map[string]any{
				"trackingId": linkID,
				"sessionId":  sessionID,
				"latitude":   41.0,
				"longitude":  28.9,
				"accuracy":   10.0,
				"capturedAt": "yesterday",
			}
			resp, _ := postJSON(t, ts.URL+"/api/v1/locations", bad)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRouteAndGeofenceEndpoints(t *testing.T) {
	Convey("Given a server with a tracked trip", t, func() {
		ts, _ := newTestServer(t)

		_, link := postJSON(t, ts.URL+"/api/v1/links", map[string]any{"name": "trip"})
		linkID := link["id"].(string)
		_, sess := postJSON(t, ts.URL+"/api/v1/sessions", map[string]any{"trackingId": linkID})
		sessionID := sess["session_id"].(string)

		base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		points := []struct {
			lat, lon float64
			at       time.Time
		}{
			{41.0082, 28.9784, base},
			{41.0122, 28.9844, base.Add(2 * time.Minute)},
		}
		for _, p := range points {
			resp, _ := postJSON(t, ts.URL+"/api/v1/locations", map[string]any{
				"trackingId": linkID,
				"sessionId":  sessionID,
				"latitude":   p.lat,
				"longitude":  p.lon,
				"accuracy":   8.0,
				"speed":      6.0,
				"capturedAt": p.at.Format(time.RFC3339),
			})
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
		}

		Convey("the route summary reflects the samples", func() {
			resp, got := getJSON(t, ts.URL+"/api/v1/links/"+linkID+"/route")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(got["total_distance_km"], ShouldBeBetween, 0.6, 0.7)
			So(got["avg_speed_kmh"], ShouldEqual, 22)
		})

		Convey("geofences can be created and listed per link", func() {
			resp, created := postJSON(t, ts.URL+"/api/v1/links/"+linkID+"/geofences", map[string]any{
				"centerLat": 41.0082,
				"centerLon": 28.9784,
				"radius":    200.0,
				"action":    "notify",
			})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(created["id"], ShouldNotBeEmpty)

			listResp, err := http.Get(ts.URL + "/api/v1/links/" + linkID + "/geofences")
			So(err, ShouldBeNil)
			defer listResp.Body.Close()
			var fences []map[string]any
			So(json.NewDecoder(listResp.Body).Decode(&fences), ShouldBeNil)
			So(len(fences), ShouldEqual, 1)
			So(fences[0]["radius_m"], ShouldEqual, 200.0)
		})

		Convey("creating a geofence on an unknown link returns 404", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/links/nope/geofences", map[string]any{
				"centerLat": 1.0, "centerLon": 1.0, "radius": 50.0,
			})
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a running API server", t, func() {
		ts, _ := newTestServer(t)

		Convey("healthz answers 200", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("stats returns a JSON snapshot", func() {
			resp, body := getJSON(t, ts.URL+"/stats")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body, ShouldNotBeNil)
		})
	})
}

func TestHistoryLimit(t *testing.T) {
	Convey("Given a link with several samples", t, func() {
		ts, _ := newTestServer(t)

		_, link := postJSON(t, ts.URL+"/api/v1/links", map[string]any{"name": "trip"})
		linkID := link["id"].(string)
		_, sess := postJSON(t, ts.URL+"/api/v1/sessions", map[string]any{"trackingId": linkID})
		sessionID := sess["session_id"].(string)

		base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			resp, _ := postJSON(t, ts.URL+"/api/v1/locations", map[string]any{
				"trackingId": linkID,
				"sessionId":  sessionID,
				"latitude":   41.0 + float64(i)*0.001,
				"longitude":  28.9,
				"accuracy":   5.0,
				"capturedAt": base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			})
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
		}

		Convey("limit caps the returned history", func() {
			resp, got := getJSON(t, fmt.Sprintf("%s/api/v1/links/%s/history?limit=2", ts.URL, linkID))
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(got["count"], ShouldEqual, 2)
		})

		Convey("a non-numeric limit returns 400", func() {
			resp, _ := getJSON(t, ts.URL+"/api/v1/links/"+linkID+"/history?limit=abc")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}
