package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Database metrics
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Pharmacy workflow metrics
	prescriptionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prescriptions_created_total",
			Help: "Total number of prescriptions created",
		},
		[]string{"service"},
	)

	dispenseAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispense_attempts_total",
			Help: "Total number of dispense attempts by outcome",
		},
		[]string{"outcome", "service"},
	)

	drugStockLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drug_stock_level",
			Help: "Current stock quantity per catalog drug",
		},
		[]string{"drug_id", "service"},
	)

	lowStockDrugs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "low_stock_drugs",
			Help: "Number of drugs below their reorder threshold",
		},
		[]string{"service"},
	)

	// External analysis metrics
	analysisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of epidemic analysis requests by outcome",
		},
		[]string{"outcome", "service"},
	)

	analysisRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_request_duration_seconds",
			Help:    "Duration of external analysis calls in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// registerOnce guards metric registration; collectors are package-level
// and shared across MetricsCollector instances within a process.
var registerOnce sync.Once

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			dbQueryDuration,
			prescriptionsCreatedTotal,
			dispenseAttemptsTotal,
			drugStockLevel,
			lowStockDrugs,
			analysisRequestsTotal,
			analysisRequestDuration,
			systemErrors,
		)
	})

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordPrescriptionCreated records a successful prescription creation
func (m *MetricsCollector) RecordPrescriptionCreated() {
	prescriptionsCreatedTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordDispenseAttempt records a dispense attempt with its outcome
// (dispensed, insufficient_stock, already_dispensed, not_found)
func (m *MetricsCollector) RecordDispenseAttempt(outcome string) {
	dispenseAttemptsTotal.WithLabelValues(outcome, m.serviceName).Inc()
}

// RecordStockLevel records the current stock quantity for a drug
func (m *MetricsCollector) RecordStockLevel(drugID string, quantity int) {
	drugStockLevel.WithLabelValues(drugID, m.serviceName).Set(float64(quantity))
}

// RecordLowStockCount records how many drugs are below threshold
func (m *MetricsCollector) RecordLowStockCount(count int) {
	lowStockDrugs.WithLabelValues(m.serviceName).Set(float64(count))
}

// RecordAnalysisRequest records an analysis call with its outcome
// (success, fallback)
func (m *MetricsCollector) RecordAnalysisRequest(outcome string, duration time.Duration) {
	analysisRequestsTotal.WithLabelValues(outcome, m.serviceName).Inc()
	analysisRequestDuration.WithLabelValues(m.serviceName).Observe(duration.Seconds())
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
