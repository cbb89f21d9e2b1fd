package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticChecker(status HealthStatus) HealthChecker {
	return NewCustomHealthChecker(func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: status}
	})
}

func TestCheckHealthAggregation(t *testing.T) {
	hm := NewHealthManager("test-service", "1.0.0")
	hm.RegisterChecker("a", staticChecker(HealthStatusHealthy))
	hm.RegisterChecker("b", staticChecker(HealthStatusHealthy))

	report := hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusHealthy, report.Status)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, "test-service", report.Service)

	hm.RegisterChecker("c", staticChecker(HealthStatusDegraded))
	report = hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusDegraded, report.Status)

	hm.RegisterChecker("d", staticChecker(HealthStatusUnhealthy))
	report = hm.CheckHealth(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
}

func TestHealthHTTPHandler(t *testing.T) {
	hm := NewHealthManager("test-service", "1.0.0")
	hm.RegisterChecker("ok", staticChecker(HealthStatusHealthy))

	rec := httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	hm.RegisterChecker("down", staticChecker(HealthStatusUnhealthy))
	rec = httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
