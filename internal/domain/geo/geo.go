// Package geo provides great-circle distance computation.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between two
// coordinates, computed with the Haversine formula.
//
// The function is pure and total: it never fails. Callers are expected
// to validate their inputs; latitudes outside [-90, 90] or longitudes
// outside [-180, 180] produce mathematically defined but meaningless
// results. Range validation lives in the ingestion pipeline, not here.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceMeters is Distance scaled to meters, for callers that work in
// meter units such as geofence evaluation.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(lat1, lon1, lat2, lon2) * 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
