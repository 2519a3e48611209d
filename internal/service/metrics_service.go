package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/coursehub-api/internal/models"
)

// MetricsService owns the Prometheus registry and keeps plain counters for
// the JSON snapshot endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	enrollments     prometheus.Counter
	progressUpdates prometheus.Counter
	certificates    prometheus.Counter
	payments        *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	gradingFailures prometheus.Counter
	gradingLatency  prometheus.Histogram
	exportJobs      *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	enrollmentCount      uint64
	certificateCount     uint64
	submissionCount      uint64
	gradingFailureCount  uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by outcome",
		}, []string{"outcome"}),
		enrollments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_enrollments_total",
			Help: "Enrollments created",
		}),
		progressUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_progress_updates_total",
			Help: "Lesson progress updates recorded",
		}),
		certificates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_certificates_issued_total",
			Help: "Certificates issued",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_payments_total",
			Help: "Payment outcomes recorded, by status",
		}, []string{"status"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_submissions_total",
			Help: "Graded code submissions, by result",
		}, []string{"result"}),
		gradingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_grading_failures_total",
			Help: "Submissions rejected because the grader was unavailable",
		}),
		gradingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursehub_grading_seconds",
			Help:    "Round trip time of grading calls",
			Buckets: prometheus.DefBuckets,
		}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_export_jobs_total",
			Help: "Export jobs by final status",
		}, []string{"status"}),
	}
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheLookups, m.enrollments, m.progressUpdates, m.certificates, m.payments, m.submissions, m.gradingFailures,
		m.gradingLatency, m.exportJobs, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollment counts a new enrollment.
func (m *MetricsService) RecordEnrollment() {
	if m == nil {
		return
	}
	m.enrollments.Inc()
	atomic.AddUint64(&m.enrollmentCount, 1)
}

// RecordProgressUpdate counts a lesson progress write.
func (m *MetricsService) RecordProgressUpdate() {
	if m == nil {
		return
	}
	m.progressUpdates.Inc()
}

// RecordCertificate counts an issued certificate.
func (m *MetricsService) RecordCertificate() {
	if m == nil {
		return
	}
	m.certificates.Inc()
	atomic.AddUint64(&m.certificateCount, 1)
}

// RecordPayment counts a recorded payment outcome.
func (m *MetricsService) RecordPayment(status models.PaymentStatus) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(string(status)).Inc()
}

// RecordSubmission counts a graded submission.
func (m *MetricsService) RecordSubmission(result models.SubmissionResult, duration time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(result)).Inc()
	m.gradingLatency.Observe(duration.Seconds())
	atomic.AddUint64(&m.submissionCount, 1)
}

// RecordGradingFailure counts a submission lost to grader unavailability.
func (m *MetricsService) RecordGradingFailure(duration time.Duration) {
	if m == nil {
		return
	}
	m.gradingFailures.Inc()
	m.gradingLatency.Observe(duration.Seconds())
	atomic.AddUint64(&m.gradingFailureCount, 1)
}

// RecordExportJob counts an export job reaching a final status.
func (m *MetricsService) RecordExportJob(status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(string(status)).Inc()
}

// Snapshot returns the aggregated counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio,
		Enrollments:              atomic.LoadUint64(&m.enrollmentCount),
		CertificatesIssued:       atomic.LoadUint64(&m.certificateCount),
		Submissions:              atomic.LoadUint64(&m.submissionCount),
		GradingFailures:          atomic.LoadUint64(&m.gradingFailureCount),
		Goroutines:               runtime.NumGoroutine(),
	}
}
