package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsPrefix is the prefix used for all metrics
const MetricsPrefix = "tokenlens_"

// Service constants used as label values
const (
	ServiceMarket   = "market"
	ServiceHolders  = "holders"
	ServiceCapture  = "capture"
	ServiceAnalysis = "analysis"
)

var (
	// UpstreamRequestsTotal counts HTTP requests to upstream providers.
	// Cardinality: ~6 (2 providers x 3 statuses)
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricsPrefix + "upstream_requests_total",
			Help: "Total number of HTTP requests to upstream providers",
		},
		[]string{"service", "status"},
	)

	// UpstreamRetriesTotal counts retry attempts per provider
	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricsPrefix + "upstream_retry_attempts_total",
			Help: "Total number of upstream retry attempts",
		},
		[]string{"service"},
	)

	// AnalysisDuration tracks end-to-end analysis time per outcome
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricsPrefix + "analysis_duration_seconds",
			Help:    "Time taken to complete one token analysis",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
		},
		[]string{"status"},
	)

	// AnalysisResultsTotal counts finalized analyses by status
	AnalysisResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricsPrefix + "analysis_results_total",
			Help: "Total number of finalized analyses by status",
		},
		[]string{"status"},
	)

	// CaptureSessionsInUse tracks concurrently checked-out browser sessions
	CaptureSessionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricsPrefix + "capture_sessions_in_use",
			Help: "Number of browser sessions currently checked out of the pool",
		},
	)

	// CaptureDuration tracks bubble-map capture time per outcome
	CaptureDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricsPrefix + "capture_duration_seconds",
			Help:    "Time taken to capture a bubble map screenshot",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records an upstream HTTP request with its status
func RecordHTTPRequest(service, status string) {
	UpstreamRequestsTotal.WithLabelValues(service, status).Inc()
}

// RecordHTTPRetry records an upstream retry attempt
func RecordHTTPRetry(service string) {
	UpstreamRetriesTotal.WithLabelValues(service).Inc()
}

// RecordAnalysis records the duration and outcome of one analysis
func RecordAnalysis(status string, start time.Time) {
	duration := time.Since(start)
	AnalysisDuration.WithLabelValues(status).Observe(duration.Seconds())
	AnalysisResultsTotal.WithLabelValues(status).Inc()
	log.Printf("Metrics: analysis finished with status %s after %.2fs", status, duration.Seconds())
}

// RecordCapture records the duration and outcome of one capture
func RecordCapture(status string, start time.Time) {
	CaptureDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// MetricsWriter provides a unified interface for recording service metrics
type MetricsWriter struct {
	serviceName string
}

// NewMetricsWriter creates a new MetricsWriter for the specified service
func NewMetricsWriter(serviceName string) *MetricsWriter {
	return &MetricsWriter{serviceName: serviceName}
}

// GetServiceName returns the service name
func (mw *MetricsWriter) GetServiceName() string {
	return mw.serviceName
}

// OnRequest records an HTTP request with its status
func (mw *MetricsWriter) OnRequest(status string) {
	RecordHTTPRequest(mw.serviceName, status)
}

// OnRetry records an HTTP retry attempt
func (mw *MetricsWriter) OnRetry() {
	RecordHTTPRetry(mw.serviceName)
}
