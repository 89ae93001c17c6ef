package tracksim

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/legalize2/location-tracker-app/pkg/logger"
)

const settleDelay = 2 * time.Second

// Run executes the complete simulation.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("tracksim")

	log.Info(ctx, "starting tracker simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("links", cfg.Links),
		logger.Int("samplesPerLink", cfg.Samples),
		logger.Duration("interval", cfg.Interval),
		logger.Bool("subscribe", cfg.Subscribe),
	)

	client := newHTTPClient(cfg.Timeout)

	if err := checkServiceHealth(ctx, client, cfg); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	tracks := generateTracks(cfg, rng)

	if err := provisionTracks(ctx, client, cfg, tracks); err != nil {
		return fmt.Errorf("provisioning failed: %w", err)
	}

	var feed *watcher
	if cfg.Subscribe {
		w, err := newWatcher(ctx, cfg, tracks)
		if err != nil {
			return fmt.Errorf("websocket subscription failed: %w", err)
		}
		feed = w
		defer feed.close()
	}

	if err := submitTracks(ctx, client, cfg, tracks, stats); err != nil {
		return fmt.Errorf("sample submission failed: %w", err)
	}

	log.Info(ctx, "waiting for the pipeline to settle")
	time.Sleep(settleDelay)

	if feed != nil {
		stats.UpdatesReceived = feed.received()
	}

	if err := verifyTracks(ctx, client, cfg, tracks, stats); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient, cfg *Config) error {
	resp, err := client.Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status %d", resp.StatusCode)
	}
	return nil
}

// provisionTracks creates one link and one session per simulated device.
func provisionTracks(ctx context.Context, client *HTTPClient, cfg *Config, tracks []*Track) error {
	for _, track := range tracks {
		var link struct {
			ID string `json:"id"`
		}
		status, err := client.postDecoded(ctx, cfg.BaseURL+"/api/v1/links", map[string]any{
			"name":            track.Name,
			"intervalSeconds": int(cfg.Interval.Seconds()),
		}, &link)
		if err != nil {
			return err
		}
		if status != http.StatusCreated || link.ID == "" {
			return fmt.Errorf("link creation for %s returned status %d", track.Name, status)
		}
		track.LinkID = link.ID

		var sess struct {
			SessionID string `json:"session_id"`
		}
		status, err = client.postDecoded(ctx, cfg.BaseURL+"/api/v1/sessions", map[string]any{
			"trackingId": track.LinkID,
			"device":     "simulator",
		}, &sess)
		if err != nil {
			return err
		}
		if status != http.StatusCreated || sess.SessionID == "" {
			return fmt.Errorf("session creation for %s returned status %d", track.Name, status)
		}
		track.SessionID = sess.SessionID
	}
	return nil
}

// submitTracks posts every device's walk. Devices run concurrently;
// fixes within one device stay sequential, as a real phone would send
// them.
func submitTracks(ctx context.Context, client *HTTPClient, cfg *Config, tracks []*Track, stats *Stats) error {
	var (
		submitted int64
		accepted  int64
		duplicate int64
		failed    int64
	)

	var wg sync.WaitGroup
	for _, track := range tracks {
		wg.Add(1)
		go func(track *Track) {
			defer wg.Done()
			for _, p := range track.Points {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddInt64(&submitted, 1)
				switch submitSample(ctx, client, cfg, track, p) {
				case http.StatusAccepted:
					atomic.AddInt64(&accepted, 1)
				case http.StatusOK:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}(track)
	}
	wg.Wait()

	stats.SamplesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.SamplesAccepted = int(atomic.LoadInt64(&accepted))
	stats.SamplesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.SamplesFailed = int(atomic.LoadInt64(&failed))

	if stats.SamplesFailed > 0 {
		return fmt.Errorf("%d of %d samples failed", stats.SamplesFailed, stats.SamplesSubmitted)
	}
	return nil
}

func submitSample(ctx context.Context, client *HTTPClient, cfg *Config, track *Track, p Point) int {
	resp, err := client.Post(ctx, cfg.BaseURL+"/api/v1/locations", map[string]any{
		"trackingId": track.LinkID,
		"sessionId":  track.SessionID,
		"latitude":   p.Latitude,
		"longitude":  p.Longitude,
		"accuracy":   p.AccuracyM,
		"speed":      p.SpeedMPS,
		"heading":    p.HeadingDeg,
		"capturedAt": p.CapturedAt.Format(time.RFC3339),
	})
	if err != nil {
		return 0
	}
	resp.Body.Close()
	return resp.StatusCode
}

// verifyTracks checks that every accepted fix is readable back through
// history and that the route endpoint answers for each link.
func verifyTracks(ctx context.Context, client *HTTPClient, cfg *Config, tracks []*Track, stats *Stats) error {
	log := logger.Named("tracksim")

	for _, track := range tracks {
		var history struct {
			Count int `json:"count"`
		}
		status, err := client.getDecoded(ctx, cfg.BaseURL+"/api/v1/links/"+track.LinkID+"/history", &history)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("history for %s returned status %d", track.Name, status)
		}
		if history.Count != len(track.Points) {
			return fmt.Errorf("history mismatch for %s: sent %d, stored %d",
				track.Name, len(track.Points), history.Count)
		}

		var summary struct {
			TotalDistanceKm float64 `json:"total_distance_km"`
			AvgSpeedKmh     int     `json:"avg_speed_kmh"`
		}
		status, err = client.getDecoded(ctx, cfg.BaseURL+"/api/v1/links/"+track.LinkID+"/route", &summary)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("route for %s returned status %d", track.Name, status)
		}
		if cfg.Verbose {
			log.Info(ctx, "route verified",
				logger.String("link", track.Name),
				logger.Float64("distanceKm", summary.TotalDistanceKm),
				logger.Int("avgSpeedKmh", summary.AvgSpeedKmh),
			)
		}
	}

	if cfg.Subscribe && stats.UpdatesReceived != stats.SamplesAccepted {
		return fmt.Errorf("live delivery mismatch: accepted %d, received %d",
			stats.SamplesAccepted, stats.UpdatesReceived)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "simulation completed",
		logger.Duration("duration", stats.Duration),
		logger.Int("submitted", stats.SamplesSubmitted),
		logger.Int("accepted", stats.SamplesAccepted),
		logger.Int("duplicate", stats.SamplesDuplicate),
		logger.Int("failed", stats.SamplesFailed),
		logger.Int("liveUpdates", stats.UpdatesReceived),
	)
}
