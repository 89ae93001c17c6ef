// Package model contains domain models passed between layers.
package model

import "time"

// TrackingLink is a named, shareable identifier under which location
// samples are grouped. Created by the link-management surface; the
// ingestion pipeline only reads it to confirm the link is active.
type TrackingLink struct {
	ID              string
	Name            string
	Active          bool
	IntervalSeconds int // sampling-interval hint for devices
	MaxDurationMins int // max-duration hint for devices
	CreatedAt       time.Time
}

// LocationSample is one reported geolocation fix. Immutable once
// persisted; the samples table is append-only.
type LocationSample struct {
	ID            int64
	TrackingID    string
	SessionID     string
	Latitude      float64
	Longitude     float64
	AccuracyM     float64
	SpeedMPS      *float64 // meters per second, as reported
	HeadingDeg    *float64
	AltitudeM     *float64
	BatteryLevel  *float64
	NetworkType   string
	UserAgent     string
	OriginAddress string
	CapturedAt    time.Time
}

// TrackingSession is one continuous tracking engagement under a link.
// Active is a one-way latch: once stopped, a new session must be
// started to resume tracking.
type TrackingSession struct {
	ID             string
	TrackingID     string
	StartedAt      time.Time
	LastUpdateAt   time.Time
	Active         bool
	TotalLocations int64
	Device         string
}

// Geofence is a circular region tied to a tracking link. Radius is in
// meters. Read-only from the pipeline's perspective.
type Geofence struct {
	ID         string
	TrackingID string
	CenterLat  float64
	CenterLon  float64
	RadiusM    float64
	Action     string
	Active     bool
}

// UpdateEvent is the real-time payload fanned out to subscribers of a
// tracking link.
type UpdateEvent struct {
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	AccuracyM    float64   `json:"accuracy"`
	SpeedMPS     *float64  `json:"speed,omitempty"`
	HeadingDeg   *float64  `json:"heading,omitempty"`
	AltitudeM    *float64  `json:"altitude,omitempty"`
	BatteryLevel *float64  `json:"batteryLevel,omitempty"`
	NetworkType  string    `json:"networkType,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventFromSample builds the outbound update event for an accepted sample.
func EventFromSample(s *LocationSample) UpdateEvent {
	return UpdateEvent{
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		AccuracyM:    s.AccuracyM,
		SpeedMPS:     s.SpeedMPS,
		HeadingDeg:   s.HeadingDeg,
		AltitudeM:    s.AltitudeM,
		BatteryLevel: s.BatteryLevel,
		NetworkType:  s.NetworkType,
		Timestamp:    s.CapturedAt,
	}
}
