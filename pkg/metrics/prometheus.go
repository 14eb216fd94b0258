// Package metrics provides the Prometheus metrics sink for the query pipeline.
//
// A Manager is created by the top-level orchestrator and handed by reference
// to every component. All recording methods are safe on a nil *Manager, so
// components built without a sink (tests, tools) simply skip recording.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Strategy and outcome label values shared by callers.
const (
	StrategyFastPath = "fast_path"
	StrategyFallback = "fallback"

	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheExpired = "expired"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	// Resolution
	resolutions       *prometheus.CounterVec
	strategyFailures  *prometheus.CounterVec
	strategyLatency   *prometheus.HistogramVec
	remoteParseCalls  *prometheus.CounterVec
	resolutionFailure prometheus.Counter

	// Fetching
	fetchAttempts *prometheus.CounterVec
	backoffSleeps prometheus.Counter
	backoffWait   prometheus.Histogram
	fetchFailures prometheus.Counter
	plans         *prometheus.CounterVec

	// Cache
	cacheLookups   *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheEntries   *prometheus.GaugeVec

	// Normalization and validation
	rowsNormalized     *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	queryDuration      prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager registered on its own registry unless
// WithPrometheusRegistry is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "grid",
		subsystem:        "query",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
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

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.resolutions = auto.NewCounterVec(
		m.counterOpts("resolutions_total", "Arbitrated resolutions by winning strategy"),
		[]string{"source"},
	)
	m.strategyFailures = auto.NewCounterVec(
		m.counterOpts("strategy_failures_total", "Resolution strategy failures by strategy"),
		[]string{"strategy"},
	)
	m.strategyLatency = auto.NewHistogramVec(
		m.histogramOpts("strategy_latency_seconds", "Latency of each resolution strategy", m.histogramBuckets),
		[]string{"strategy"},
	)
	m.remoteParseCalls = auto.NewCounterVec(
		m.counterOpts("remote_parse_calls_total", "Calls to the remote semantic parser by caller"),
		[]string{"caller"},
	)
	m.resolutionFailure = auto.NewCounter(
		m.counterOpts("resolution_failures_total", "Queries for which no strategy produced an outcome"),
	)

	m.fetchAttempts = auto.NewCounterVec(
		m.counterOpts("fetch_attempts_total", "Upstream fetch attempts by outcome"),
		[]string{"outcome"},
	)
	m.backoffSleeps = auto.NewCounter(
		m.counterOpts("fetch_backoff_sleeps_total", "Backoff sleeps taken between upstream attempts"),
	)
	m.backoffWait = auto.NewHistogram(
		m.histogramOpts("fetch_backoff_seconds", "Backoff wait durations", []float64{0.5, 1, 2, 4, 8, 16, 32}),
	)
	m.fetchFailures = auto.NewCounter(
		m.counterOpts("fetch_failures_total", "Fetches that exhausted their retry budget"),
	)
	m.plans = auto.NewCounterVec(
		m.counterOpts("plans_total", "Request plans by outcome"),
		[]string{"outcome"},
	)

	m.cacheLookups = auto.NewCounterVec(
		m.counterOpts("cache_lookups_total", "Cache lookups by cache and result"),
		[]string{"cache", "result"},
	)
	m.cacheEvictions = auto.NewCounterVec(
		m.counterOpts("cache_evictions_total", "Entries evicted for capacity by cache"),
		[]string{"cache"},
	)
	m.cacheEntries = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "cache_entries",
			Help:        "Current number of cache entries by cache",
			ConstLabels: m.constLabels,
		},
		[]string{"cache"},
	)

	m.rowsNormalized = auto.NewCounterVec(
		m.counterOpts("rows_normalized_total", "Canonical rows produced by endpoint family"),
		[]string{"family"},
	)
	m.validationFailures = auto.NewCounterVec(
		m.counterOpts("validation_failures_total", "Canonical tables missing required columns by family"),
		[]string{"family"},
	)
	m.queryDuration = auto.NewHistogram(
		m.histogramOpts("duration_seconds", "End-to-end query duration", m.histogramBuckets),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_seconds", "HTTP request duration", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
}

// Registry returns the registry the manager's collectors live on.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordResolution counts an arbitrated outcome for the winning source.
func (m *Manager) RecordResolution(source string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source).Inc()
}

// RecordResolutionFailure counts a query no strategy could resolve.
func (m *Manager) RecordResolutionFailure() {
	if m == nil {
		return
	}
	m.resolutionFailure.Inc()
}

// RecordStrategyFailure counts a failed resolution strategy.
func (m *Manager) RecordStrategyFailure(strategy string) {
	if m == nil {
		return
	}
	m.strategyFailures.WithLabelValues(strategy).Inc()
}

// ObserveStrategyLatency records how long a strategy took, in seconds.
func (m *Manager) ObserveStrategyLatency(strategy string, seconds float64) {
	if m == nil {
		return
	}
	m.strategyLatency.WithLabelValues(strategy).Observe(seconds)
}

// RecordRemoteParse counts a remote semantic parser call.
func (m *Manager) RecordRemoteParse(caller string) {
	if m == nil {
		return
	}
	m.remoteParseCalls.WithLabelValues(caller).Inc()
}

// RecordFetchAttempt counts one upstream attempt with its outcome.
func (m *Manager) RecordFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(outcome).Inc()
}

// RecordBackoff records one backoff sleep of the given length in seconds.
func (m *Manager) RecordBackoff(seconds float64) {
	if m == nil {
		return
	}
	m.backoffSleeps.Inc()
	m.backoffWait.Observe(seconds)
}

// RecordFetchFailure counts a fetch that exhausted its budget.
func (m *Manager) RecordFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// RecordPlan counts a processed request plan by outcome.
func (m *Manager) RecordPlan(outcome string) {
	if m == nil {
		return
	}
	m.plans.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a cache lookup result.
func (m *Manager) RecordCacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordCacheEviction counts entries evicted for capacity.
func (m *Manager) RecordCacheEviction(cache string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(cache).Add(float64(n))
}

// UpdateCacheEntries sets the current entry count of a cache.
func (m *Manager) UpdateCacheEntries(cache string, n int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// RecordRows counts canonical rows produced for a family.
func (m *Manager) RecordRows(family string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsNormalized.WithLabelValues(family).Add(float64(n))
}

// RecordValidationFailure counts a table missing required columns.
func (m *Manager) RecordValidationFailure(family string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(family).Inc()
}

// ObserveQueryDuration records an end-to-end query duration in seconds.
func (m *Manager) ObserveQueryDuration(seconds float64) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(seconds)
}

// RecordHTTPRequest records an HTTP request and its duration in seconds.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}
