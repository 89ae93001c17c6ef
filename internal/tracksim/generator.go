package tracksim

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Walk origin and step tuning. Devices start scattered around central
// Istanbul and move at pedestrian-to-vehicle speeds.
const (
	originLat = 41.0082
	originLon = 28.9784

	scatterDeg   = 0.05 // initial scatter around the origin
	minSpeedMPS  = 1.0
	maxSpeedMPS  = 15.0
	maxTurnRad   = math.Pi / 4
	baseAccuracy = 5.0
	jitterM      = 10.0

	metersPerDegreeLat = 111320.0
)

// Point is one simulated fix on a walk.
type Point struct {
	Latitude   float64
	Longitude  float64
	AccuracyM  float64
	SpeedMPS   float64
	HeadingDeg float64
	CapturedAt time.Time
}

// Track is one simulated device's walk plus the server-side identities
// it reports under.
type Track struct {
	Name      string
	LinkID    string
	SessionID string
	Points    []Point
}

// generateWalk produces a random walk of n fixes spaced by interval.
// Each step keeps the previous bearing with a bounded random turn, so
// routes look like movement rather than noise.
func generateWalk(rng *rand.Rand, n int, interval time.Duration, start time.Time) []Point {
	lat := originLat + (rng.Float64()*2-1)*scatterDeg
	lon := originLon + (rng.Float64()*2-1)*scatterDeg
	bearing := rng.Float64() * 2 * math.Pi

	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		speed := minSpeedMPS + rng.Float64()*(maxSpeedMPS-minSpeedMPS)
		points = append(points, Point{
			Latitude:   lat,
			Longitude:  lon,
			AccuracyM:  baseAccuracy + rng.Float64()*jitterM,
			SpeedMPS:   speed,
			HeadingDeg: math.Mod(bearing*180/math.Pi+360, 360),
			CapturedAt: start.Add(time.Duration(i) * interval),
		})

		bearing += (rng.Float64()*2 - 1) * maxTurnRad
		stepM := speed * interval.Seconds()
		lat += stepM * math.Cos(bearing) / metersPerDegreeLat
		lon += stepM * math.Sin(bearing) / (metersPerDegreeLat * math.Cos(lat*math.Pi/180))
	}
	return points
}

// generateTracks builds the full set of device walks for a run.
func generateTracks(cfg *Config, rng *rand.Rand) []*Track {
	start := time.Now().UTC().Add(-time.Duration(cfg.Samples) * cfg.Interval)
	tracks := make([]*Track, 0, cfg.Links)
	for i := 0; i < cfg.Links; i++ {
		tracks = append(tracks, &Track{
			Name:   fmt.Sprintf("sim-device-%d", i+1),
			Points: generateWalk(rng, cfg.Samples, cfg.Interval, start),
		})
	}
	return tracks
}
