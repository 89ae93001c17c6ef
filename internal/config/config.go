// Package config defines service configuration and loading.
//
// Conventions:
// - New returns defaults; Load layers file and env on top.
// - Validation runs once at load time via struct tags.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// DBPath points at the SQLite database file. Empty selects the
	// in-memory store (useful for local runs and tests).
	DBPath string `koanf:"db_path"`

	// DispatchWorkers sets the number of post-persist dispatch workers.
	DispatchWorkers int `koanf:"dispatch_workers" validate:"min=1"`

	// QueueSize bounds each dispatch worker's queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// DedupeSize bounds the duplicate-sample cache.
	DedupeSize int `koanf:"dedupe_size" validate:"min=1"`

	// StopGapMinutes sets the route analyzer's stop threshold.
	StopGapMinutes int `koanf:"stop_gap_minutes" validate:"min=1"`

	// HistoryLimit caps history query sizes.
	HistoryLimit int `koanf:"history_limit" validate:"min=1"`

	// SendBuffer sizes each WebSocket subscriber's outbound buffer.
	SendBuffer int `koanf:"send_buffer" validate:"min=1"`

	// MQTTBrokerURL enables the MQTT ingest adapter when non-empty,
	// e.g. "tcp://localhost:1883".
	MQTTBrokerURL string `koanf:"mqtt_broker_url"`

	// MQTTTopicPrefix prefixes the location topics the adapter
	// subscribes to: <prefix>/<trackingId>/location.
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":8090",
		DBPath:          "",
		DispatchWorkers: runtime.NumCPU() * 2,
		QueueSize:       10_000,
		DedupeSize:      50_000,
		StopGapMinutes:  5,
		HistoryLimit:    10_000,
		SendBuffer:      64,
		MQTTTopicPrefix: "tracker",
	}
}
