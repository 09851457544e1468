package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scoreline service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Feed ingestion
	feedUpdatesAccepted  prometheus.Counter
	feedUpdatesDuplicate prometheus.Counter
	feedUpdatesRejected  *prometheus.CounterVec
	settlements          prometheus.Counter
	settlementLatency    prometheus.Histogram
	matchesCompleted     *prometheus.GaugeVec

	// Scoring and ranking
	matchPointsByTier *prometheus.CounterVec
	rankLookups       *prometheus.CounterVec
	leaderboardSize   prometheus.Histogram

	// Predictions
	predictionWrites *prometheus.CounterVec
	predictionsTotal prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scoreline",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.feedUpdatesAccepted = auto.NewCounter(m.counterOpts(
		"feed_updates_accepted_total", "Feed updates accepted for settlement"))
	m.feedUpdatesDuplicate = auto.NewCounter(m.counterOpts(
		"feed_updates_duplicate_total", "Feed updates dropped because their event id was already seen"))
	m.feedUpdatesRejected = auto.NewCounterVec(m.counterOpts(
		"feed_updates_rejected_total", "Feed updates rejected by reason"), []string{"reason"})
	m.settlements = auto.NewCounter(m.counterOpts(
		"settlements_total", "Matchday settlements completed"))
	m.settlementLatency = auto.NewHistogram(m.histogramOpts(
		"settlement_latency_milliseconds", "Time to store and tally a matchday update", nil))
	m.matchesCompleted = auto.NewGaugeVec(m.gaugeOpts(
		"matches_completed", "Completed fixtures in the latest result set of a round"), []string{"round"})

	m.matchPointsByTier = auto.NewCounterVec(m.counterOpts(
		"match_points_total", "Scored match predictions by tier"), []string{"tier"})
	m.rankLookups = auto.NewCounterVec(m.counterOpts(
		"rank_lookups_total", "Rank lookups by outcome"), []string{"result"})
	m.leaderboardSize = auto.NewHistogram(m.histogramOpts(
		"leaderboard_participants", "Participants per computed leaderboard",
		[]float64{1, 10, 100, 1_000, 10_000, 100_000}))

	m.predictionWrites = auto.NewCounterVec(m.counterOpts(
		"prediction_writes_total", "Prediction writes by operation"), []string{"operation"})
	m.predictionsTotal = auto.NewGauge(m.gaugeOpts(
		"predictions", "Stored predictions"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts(
		"http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts(
		"http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"})

	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts(
		"repository_update_latency_milliseconds", "Repository write latency in milliseconds", nil))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts(
		"repository_query_latency_milliseconds", "Repository read latency in milliseconds", nil))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending feed updates in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts(
		"queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Messages enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Messages dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Rejected enqueues"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"queue_processing_latency_milliseconds", "Time a message spent waiting in the queue", nil))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured settlement workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Busy workers"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Idle workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", nil))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Worker failures"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts(
		"errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordFeedAccepted counts a feed update accepted for settlement.
func RecordFeedAccepted() {
	globalManager.feedUpdatesAccepted.Inc()
}

// RecordFeedDuplicate counts a feed update dropped as a duplicate.
func RecordFeedDuplicate() {
	globalManager.feedUpdatesDuplicate.Inc()
}

// RecordFeedRejected counts a rejected feed update.
func RecordFeedRejected(reason string) {
	globalManager.feedUpdatesRejected.WithLabelValues(reason).Inc()
}

// RecordSettlement records a completed matchday settlement.
func RecordSettlement(latencyMs float64) {
	globalManager.settlements.Inc()
	globalManager.settlementLatency.Observe(latencyMs)
}

// UpdateMatchesCompleted sets the completed fixture count of round.
func UpdateMatchesCompleted(round string, count int) {
	globalManager.matchesCompleted.WithLabelValues(round).Set(float64(count))
}

// RecordMatchPoints counts one scored match prediction under tier.
func RecordMatchPoints(tier string) {
	globalManager.matchPointsByTier.WithLabelValues(tier).Inc()
}

// RecordRankLookup counts a rank lookup.
func RecordRankLookup(ranked bool) {
	result := "unranked"
	if ranked {
		result = "ranked"
	}
	globalManager.rankLookups.WithLabelValues(result).Inc()
}

// RecordLeaderboardSize observes the participant count of a computed leaderboard.
func RecordLeaderboardSize(participants int) {
	globalManager.leaderboardSize.Observe(float64(participants))
}

// RecordPredictionWrite counts a prediction create, update or delete.
func RecordPredictionWrite(operation string) {
	globalManager.predictionWrites.WithLabelValues(operation).Inc()
}

// UpdatePredictionsTotal sets the stored prediction count.
func UpdatePredictionsTotal(count int) {
	globalManager.predictionsTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a message waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap in use in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
