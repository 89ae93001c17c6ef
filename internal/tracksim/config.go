// Package tracksim drives a running tracker instance end to end: it
// creates links and sessions, walks simulated devices along random
// routes, posts their fixes, and verifies what came back out through
// history and the live WebSocket feed.
package tracksim

import "time"

// Config holds the simulation parameters.
type Config struct {
	BaseURL   string
	Links     int
	Samples   int
	Interval  time.Duration // synthetic capture spacing between fixes
	Timeout   time.Duration
	Subscribe bool // also verify live delivery over WebSocket
	Verbose   bool
}

// Stats accumulates simulation results.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	SamplesSubmitted int
	SamplesAccepted  int
	SamplesDuplicate int
	SamplesFailed    int
	UpdatesReceived  int
}
