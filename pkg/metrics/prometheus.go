// Package metrics provides Prometheus metrics for the tracklink service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	// Ingestion
	samplesIngested  prometheus.Counter
	samplesRejected  *prometheus.CounterVec
	samplesDuplicate prometheus.Counter
	storageErrors    prometheus.Counter

	// Fan-out
	fanoutDeliveries prometheus.Counter
	fanoutDrops      prometheus.Counter
	subscriberCount  prometheus.Gauge
	subscribedLinks  prometheus.Gauge

	// Dispatch queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueueErrs prometheus.Counter
	dispatchLatency  prometheus.Histogram
	workerCount      prometheus.Gauge

	// Domain
	geofenceTriggers prometheus.Counter
	sessionStarts    prometheus.Counter
	sessionStops     prometheus.Counter
	activeSessions   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global manager on a custom registry so default Go collectors stay out.
var globalManager *Manager                     //nolint:gochecknoglobals // singleton metrics manager
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "tracklink",
		subsystem: "tracking",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initCollectors()
	return m
}

func (m *Manager) initCollectors() {
	auto := promauto.With(m.registry)

	m.samplesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "samples_ingested_total",
		Help: "Location samples accepted and persisted",
	})
	m.samplesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "samples_rejected_total",
		Help: "Location samples rejected before persistence, by reason",
	}, []string{"reason"})
	m.samplesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "samples_duplicate_total",
		Help: "Duplicate sample submissions suppressed",
	})
	m.storageErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "storage_errors_total",
		Help: "Persistence failures surfaced to submitters",
	})

	m.fanoutDeliveries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fanout_deliveries_total",
		Help: "Events delivered to subscribers",
	})
	m.fanoutDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fanout_drops_total",
		Help: "Events dropped on send to a dead or slow subscriber",
	})
	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "subscribers",
		Help: "Currently connected subscribers across all links",
	})
	m.subscribedLinks = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "subscribed_links",
		Help: "Tracking links with at least one subscriber",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dispatch_queue_size",
		Help: "Jobs waiting in the post-persist dispatch queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dispatch_queue_capacity",
		Help: "Configured dispatch queue capacity",
	})
	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dispatch_enqueue_errors_total",
		Help: "Dispatch jobs refused by a full or closed queue",
	})
	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dispatch_latency_milliseconds",
		Help: "Time from job pickup to completed side effects",
		Buckets: m.buckets,
	})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dispatch_workers",
		Help: "Running dispatch workers",
	})

	m.geofenceTriggers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "geofence_triggers_total",
		Help: "Geofences triggered by ingested samples",
	})
	m.sessionStarts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "session_starts_total",
		Help: "Tracking sessions started",
	})
	m.sessionStops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "session_stops_total",
		Help: "Tracking sessions stopped",
	})
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_sessions",
		Help: "Sessions currently marked active",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds",
		Buckets: m.buckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Package-level helpers recording on the global manager.

func RecordSampleIngested()            { globalManager.samplesIngested.Inc() }
func RecordSampleRejected(reason string) {
	globalManager.samplesRejected.WithLabelValues(reason).Inc()
}
func RecordSampleDuplicate() { globalManager.samplesDuplicate.Inc() }
func RecordStorageError()    { globalManager.storageErrors.Inc() }

func RecordFanoutDelivery()          { globalManager.fanoutDeliveries.Inc() }
func RecordFanoutDrop()              { globalManager.fanoutDrops.Inc() }
func UpdateSubscriberCount(n int)    { globalManager.subscriberCount.Set(float64(n)) }
func UpdateSubscribedLinkCount(n int) { globalManager.subscribedLinks.Set(float64(n)) }

func UpdateQueueSize(n int)                 { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)             { globalManager.queueCapacity.Set(float64(n)) }
func RecordQueueEnqueueError()              { globalManager.queueEnqueueErrs.Inc() }
func RecordDispatchLatency(ms float64)      { globalManager.dispatchLatency.Observe(ms) }
func UpdateWorkerCount(n int)               { globalManager.workerCount.Set(float64(n)) }

func RecordGeofenceTrigger()     { globalManager.geofenceTriggers.Inc() }
func RecordSessionStart()        { globalManager.sessionStarts.Inc() }
func RecordSessionStop()         { globalManager.sessionStops.Inc() }
func UpdateActiveSessions(n int) { globalManager.activeSessions.Set(float64(n)) }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// GetRegistry exposes the custom registry for the /healthz handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
