package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MonitoringMiddleware combines metrics, tracing, and logging
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
	logger  Logger
}

// Logger interface for the monitoring middleware
type Logger interface {
	HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration int64, details map[string]interface{})
}

// NewMonitoringMiddleware creates a new monitoring middleware. The
// tracing manager may be nil when tracing is disabled.
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, logger Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
		logger:  logger,
	}
}

// HTTPMiddleware creates comprehensive HTTP monitoring middleware
func (mm *MonitoringMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Generate request ID if not present
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), "request_id", requestID)

		wrapper := &monitoringResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		wrapper.Header().Set("X-Request-ID", requestID)

		details := map[string]interface{}{
			"request_id": requestID,
		}

		if mm.tracing != nil {
			ctx = mm.tracing.ExtractTraceContext(ctx, r.Header)

			tracedCtx, httpSpan := mm.tracing.StartHTTPSpan(ctx, r.Method, r.URL.Path)
			ctx = tracedCtx
			defer httpSpan.End()

			httpSpan.SetAttributes(
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("http.remote_addr", r.RemoteAddr),
				attribute.String("request.id", requestID),
			)

			mm.tracing.InjectTraceContext(ctx, wrapper.Header())

			next.ServeHTTP(wrapper, r.WithContext(ctx))

			httpSpan.SetAttributes(
				attribute.Int("http.status_code", wrapper.statusCode),
				attribute.Int64("http.response_size", wrapper.bytesWritten),
			)
			if wrapper.statusCode >= 400 {
				httpSpan.SetStatus(codes.Error, http.StatusText(wrapper.statusCode))
			}

			details["trace_id"] = mm.tracing.TraceIDFromContext(ctx)
			details["span_id"] = mm.tracing.SpanIDFromContext(ctx)
		} else {
			next.ServeHTTP(wrapper, r.WithContext(ctx))
		}

		duration := time.Since(start)

		statusCode := strconv.Itoa(wrapper.statusCode)
		mm.metrics.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)

		details["bytes_written"] = wrapper.bytesWritten

		mm.logger.HTTPRequest(
			ctx,
			r.Method,
			r.URL.Path,
			r.UserAgent(),
			r.RemoteAddr,
			wrapper.statusCode,
			duration.Milliseconds(),
			details,
		)
	})
}

// DatabaseMiddleware creates middleware for database operations
func (mm *MonitoringMiddleware) DatabaseMiddleware(operation, table string) func(context.Context, func() error) error {
	return func(ctx context.Context, dbFunc func() error) error {
		start := time.Now()

		if mm.tracing != nil {
			tracedCtx, dbSpan := mm.tracing.StartDatabaseSpan(ctx, operation, table)
			ctx = tracedCtx
			defer dbSpan.End()

			err := dbFunc()
			mm.metrics.RecordDBQuery(operation, time.Since(start))
			if err != nil {
				mm.tracing.RecordError(dbSpan, err)
				mm.metrics.RecordSystemError("database_error", "database")
			}
			return err
		}

		err := dbFunc()
		mm.metrics.RecordDBQuery(operation, time.Since(start))
		if err != nil {
			mm.metrics.RecordSystemError("database_error", "database")
		}
		return err
	}
}

// monitoringResponseWriter wraps http.ResponseWriter to capture metrics
type monitoringResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (mrw *monitoringResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *monitoringResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += int64(n)
	return n, err
}
