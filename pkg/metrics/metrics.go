package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the dedicated registry served on /api/metrics
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	// Custom histogram buckets for API response times ranging from milliseconds to 30+ seconds
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34}

	// HTTP Metrics
	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Rate limiting
	RateLimitDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightpath_rate_limit_decisions_total",
			Help: "Rate limit decisions by policy and outcome (allowed, rejected, error)",
		},
		[]string{"policy", "decision"},
	)

	RateLimitEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "brightpath_rate_limit_entries",
			Help: "Number of client entries held by the in-memory rate limit store",
		},
	)

	RateLimitSweeps = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "brightpath_rate_limit_swept_entries_total",
			Help: "Expired rate limit entries removed by the periodic sweep",
		},
	)

	// Verification gate
	VerificationRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brightpath_verification_request_duration_seconds",
			Help:    "Challenge token verification call duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"status"},
	)

	VerificationResults = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightpath_verification_results_total",
			Help: "Challenge token verification results",
		},
		[]string{"result"},
	)

	// Contact sink (CRM)
	CRMRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_client_operation_duration_seconds",
			Help:    "CRM client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	CRMRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_client_operation_total",
			Help: "Total number of CRM client operations",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brightpath_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// Lead archive (PostgreSQL)
	DBOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_client_operation_duration_seconds",
			Help:    "Database client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	DBOperationTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_client_operation_total",
			Help: "Total number of database client operations",
		},
		[]string{"operation", "status"},
	)

	// Business Metrics
	ContactFormSubmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightpath_contact_form_submissions_total",
			Help: "Contact form submissions by pipeline outcome",
		},
		[]string{"status"},
	)

	BackgroundTasks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brightpath_background_tasks_total",
			Help: "Best-effort background tasks by operation and status",
		},
		[]string{"operation", "status"},
	)

	// Infrastructure Metrics
	GoRoutines = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordInfrastructureMetrics collects infrastructure metrics periodically until ctx is done
func RecordInfrastructureMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)

				GoRoutines.Set(float64(runtime.NumGoroutine()))
				HeapAlloc.Set(float64(m.HeapAlloc))
			}
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
