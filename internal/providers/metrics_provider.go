package providers

import (
	"time"
	"wakaproof/internal/structures"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncRecordsWritten(result string)
	IncProofStatus(status string)
	ObserveSourceLatency(source string, duration time.Duration)
	IncSourceFailures(source string)
	IncIncompleteRanges(kind string)
}

type MetricsProvider struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	recordsWritten   *prometheus.CounterVec
	proofStatus      *prometheus.CounterVec
	sourceLatency    *prometheus.HistogramVec
	sourceFailures   *prometheus.CounterVec
	incompleteRanges *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncRecordsWritten(result string) {
	m.recordsWritten.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) IncProofStatus(status string) {
	m.proofStatus.WithLabelValues(status).Inc()
}

func (m *MetricsProvider) ObserveSourceLatency(source string, duration time.Duration) {
	m.sourceLatency.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncSourceFailures(source string) {
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *MetricsProvider) IncIncompleteRanges(kind string) {
	m.incompleteRanges.WithLabelValues(kind).Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wakaproof_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wakaproof_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wakaproof_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wakaproof_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		recordsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wakaproof_records_written_total",
			Help: "Daily record writes by result",
		}, []string{"result"}),

		proofStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wakaproof_proof_bundles_total",
			Help: "Proof bundles collected by status",
		}, []string{"status"}),

		sourceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wakaproof_timestamp_source_latency_seconds",
			Help:    "Latency of external timestamp sources",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),

		sourceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wakaproof_timestamp_source_failures_total",
			Help: "Failed timestamp source queries",
		}, []string{"source"}),

		incompleteRanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wakaproof_incomplete_ranges_total",
			Help: "Aggregations produced over incomplete ranges",
		}, []string{"kind"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncRecordsWritten(_ string)                       {}
func (n *noopMetrics) IncProofStatus(_ string)                          {}
func (n *noopMetrics) ObserveSourceLatency(_ string, _ time.Duration)   {}
func (n *noopMetrics) IncSourceFailures(_ string)                       {}
func (n *noopMetrics) IncIncompleteRanges(_ string)                     {}
