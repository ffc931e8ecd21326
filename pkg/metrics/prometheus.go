// Package metrics provides Prometheus metrics for the scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core business metrics
	racesProcessed     prometheus.Counter
	predictionsScored  prometheus.Counter
	predictionsSkipped prometheus.Counter
	duplicateApplies   prometheus.Counter
	reconciliations    prometheus.Counter
	leaderboardUpdates prometheus.Counter
	scoringLatency     prometheus.Histogram
	scoringErrors      prometheus.Counter

	// Store metrics
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	storeConflicts     prometheus.Counter
	storeRetries       prometheus.Counter

	// Operational health metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	workerCount      prometheus.Gauge
	leaderboardUsers prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "apex",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.racesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "races_processed_total",
		Help:      "Total number of race batches processed",
	})
	m.predictionsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_scored_total",
		Help:      "Total number of predictions scored and applied",
	})
	m.predictionsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_skipped_total",
		Help:      "Total number of malformed predictions skipped",
	})
	m.duplicateApplies = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_applies_total",
		Help:      "Total number of idempotent no-op race applications",
	})
	m.reconciliations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconciliations_total",
		Help:      "Total number of season totals rebuilt from the audit trail",
	})
	m.leaderboardUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_updates_total",
		Help:      "Total number of season total updates",
	})
	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_latency_milliseconds",
		Help:      "Histogram of per-prediction scoring latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.scoringErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scoring_errors_total",
		Help:      "Total number of failed per-prediction scoring attempts",
	})

	m.storeUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_update_latency_milliseconds",
		Help:      "Histogram of store write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Histogram of store read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_conflicts_total",
		Help:      "Total number of conditional writes rejected by version check",
	})
	m.storeRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_retries_total",
		Help:      "Total number of backoff retries on transient store errors",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of queued scoring tasks",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the scoring task queue",
	})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of scoring workers",
	})
	m.leaderboardUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_users",
		Help:      "Number of users tracked on the season leaderboard",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
}

// GetRegistry returns the registry metrics are exposed from.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Manager methods.

func (m *Manager) RecordRaceProcessed()     { m.racesProcessed.Inc() }
func (m *Manager) RecordPredictionScored()  { m.predictionsScored.Inc() }
func (m *Manager) RecordPredictionSkipped() { m.predictionsSkipped.Inc() }
func (m *Manager) RecordDuplicateApply()    { m.duplicateApplies.Inc() }
func (m *Manager) RecordReconciliation()    { m.reconciliations.Inc() }
func (m *Manager) RecordLeaderboardUpdate() { m.leaderboardUpdates.Inc() }
func (m *Manager) RecordScoringError()      { m.scoringErrors.Inc() }
func (m *Manager) RecordStoreConflict()     { m.storeConflicts.Inc() }
func (m *Manager) RecordStoreRetry()        { m.storeRetries.Inc() }

func (m *Manager) RecordScoringLatency(ms float64)     { m.scoringLatency.Observe(ms) }
func (m *Manager) RecordStoreUpdateLatency(ms float64) { m.storeUpdateLatency.Observe(ms) }
func (m *Manager) RecordStoreQueryLatency(ms float64)  { m.storeQueryLatency.Observe(ms) }

func (m *Manager) UpdateQueueSize(n int)        { m.queueSize.Set(float64(n)) }
func (m *Manager) UpdateQueueCapacity(n int)    { m.queueCapacity.Set(float64(n)) }
func (m *Manager) UpdateWorkerCount(n int)      { m.workerCount.Set(float64(n)) }
func (m *Manager) UpdateLeaderboardUsers(n int) { m.leaderboardUsers.Set(float64(n)) }

// RecordHTTPRequest records one request by endpoint, method and status.
func (m *Manager) RecordHTTPRequest(endpoint, method, status string) {
	m.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records one request's duration in milliseconds.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// Package-level helpers delegating to the global manager.

func RecordRaceProcessed()     { globalManager.RecordRaceProcessed() }
func RecordPredictionScored()  { globalManager.RecordPredictionScored() }
func RecordPredictionSkipped() { globalManager.RecordPredictionSkipped() }
func RecordDuplicateApply()    { globalManager.RecordDuplicateApply() }
func RecordReconciliation()    { globalManager.RecordReconciliation() }
func RecordLeaderboardUpdate() { globalManager.RecordLeaderboardUpdate() }
func RecordScoringError()      { globalManager.RecordScoringError() }
func RecordStoreConflict()     { globalManager.RecordStoreConflict() }
func RecordStoreRetry()        { globalManager.RecordStoreRetry() }

func RecordScoringLatency(ms float64)     { globalManager.RecordScoringLatency(ms) }
func RecordStoreUpdateLatency(ms float64) { globalManager.RecordStoreUpdateLatency(ms) }
func RecordStoreQueryLatency(ms float64)  { globalManager.RecordStoreQueryLatency(ms) }

func UpdateQueueSize(n int)        { globalManager.UpdateQueueSize(n) }
func UpdateQueueCapacity(n int)    { globalManager.UpdateQueueCapacity(n) }
func UpdateWorkerCount(n int)      { globalManager.UpdateWorkerCount(n) }
func UpdateLeaderboardUsers(n int) { globalManager.UpdateLeaderboardUsers(n) }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.RecordHTTPRequest(endpoint, method, status)
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, status, ms)
}
