// Package route derives trip statistics and stop detection from an
// ordered location history.
package route

import (
	"math"
	"time"

	"github.com/legalize2/location-tracker-app/internal/domain/geo"
	"github.com/legalize2/location-tracker-app/internal/domain/model"
)

// Default stop detection threshold. A reporting gap longer than this
// between consecutive samples is recorded as a stop.
const defaultStopGap = 5 * time.Minute

// Stop marks a detected reporting gap, located at the sample that ended it.
type Stop struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	DurationMinutes float64   `json:"duration_minutes"`
	Timestamp       time.Time `json:"timestamp"`
}

// Summary aggregates a location history into trip statistics.
// TotalDistanceKm is rounded to 2 decimals; AvgSpeedKmh is the rounded
// mean of reported per-sample speeds (m/s on the wire, converted by
// 3.6); DurationHours is the unrounded first-to-last wall-clock span.
type Summary struct {
	TotalDistanceKm float64 `json:"total_distance_km"`
	AvgSpeedKmh     int     `json:"avg_speed_kmh"`
	DurationHours   float64 `json:"duration_hours"`
	Stops           []Stop  `json:"stops"`
}

// Analyzer computes route summaries. The zero value is not usable;
// construct with New.
type Analyzer struct {
	stopGap time.Duration
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithStopGap overrides the reporting-gap threshold for stop detection.
func WithStopGap(gap time.Duration) Option {
	return func(a *Analyzer) {
		if gap > 0 {
			a.stopGap = gap
		}
	}
}

// New creates an Analyzer with default configuration.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{stopGap: defaultStopGap}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze walks samples, ordered by capture time ascending, and returns
// the trip summary. Fewer than two samples yield a zeroed summary.
// Pure function over its input; no side effects.
//
// Stop detection flags gaps in reporting, not reduced motion: a device
// that keeps reporting while parked produces no stop.
func (a *Analyzer) Analyze(samples []model.LocationSample) Summary {
	if len(samples) < 2 {
		return Summary{Stops: []Stop{}}
	}

	var totalKm float64
	var speedSum float64
	var speedCount int
	stops := []Stop{}

	for i := 1; i < len(samples); i++ {
		prev, cur := &samples[i-1], &samples[i]
		totalKm += geo.Distance(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)

		if gap := cur.CapturedAt.Sub(prev.CapturedAt); gap > a.stopGap {
			stops = append(stops, Stop{
				Latitude:        cur.Latitude,
				Longitude:       cur.Longitude,
				DurationMinutes: gap.Minutes(),
				Timestamp:       cur.CapturedAt,
			})
		}
	}

	for i := range samples {
		if samples[i].SpeedMPS != nil {
			speedSum += *samples[i].SpeedMPS
			speedCount++
		}
	}

	var avgKmh int
	if speedCount > 0 {
		avgKmh = int(math.Round(speedSum / float64(speedCount) * 3.6))
	}

	return Summary{
		TotalDistanceKm: math.Round(totalKm*100) / 100,
		AvgSpeedKmh:     avgKmh,
		DurationHours:   samples[len(samples)-1].CapturedAt.Sub(samples[0].CapturedAt).Hours(),
		Stops:           stops,
	}
}
