// Package geofence evaluates coordinates against circular regions.
package geofence

import (
	"github.com/legalize2/location-tracker-app/internal/domain/geo"
	"github.com/legalize2/location-tracker-app/internal/domain/model"
)

// Point is a coordinate under evaluation.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Trigger reports a geofence the point falls inside of.
type Trigger struct {
	GeofenceID     string  `json:"geofence_id"`
	Action         string  `json:"action"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Evaluate tests point against every active geofence and returns one
// Trigger per fence whose radius contains the point. A distance exactly
// equal to the radius counts as inside. Inactive fences are skipped.
//
// The result preserves the input ordering, so evaluation is
// deterministic for a given fence slice. Pure function; no side effects.
func Evaluate(point Point, fences []model.Geofence) []Trigger {
	var triggered []Trigger
	for _, f := range fences {
		if !f.Active {
			continue
		}
		d := geo.DistanceMeters(point.Latitude, point.Longitude, f.CenterLat, f.CenterLon)
		if d <= f.RadiusM {
			triggered = append(triggered, Trigger{
				GeofenceID:     f.ID,
				Action:         f.Action,
				DistanceMeters: d,
			})
		}
	}
	return triggered
}
