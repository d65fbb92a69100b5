package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedError struct{ code string }

func (e codedError) Error() string     { return e.code }
func (e codedError) ErrorCode() string { return e.code }

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `fleetledger_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `fleetledger_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObservePayrollOperationOutcomes(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObservePayrollOperation("payroll.close_period", nil, 5*time.Millisecond)
	metrics.ObservePayrollOperation("payroll.close_period", codedError{code: "PAYROLL_PERIOD_CLOSED"}, time.Millisecond)
	metrics.ObservePayrollOperation("payroll.close_period", errors.New("boom"), time.Millisecond)

	body := scrape(t, metrics)
	assert.Contains(t, body, `fleetledger_payroll_operations_total{op="payroll.close_period",outcome="success"} 1`)
	assert.Contains(t, body, `fleetledger_payroll_operations_total{op="payroll.close_period",outcome="PAYROLL_PERIOD_CLOSED"} 1`)
	assert.Contains(t, body, `fleetledger_payroll_operations_total{op="payroll.close_period",outcome="error"} 1`)
	assert.True(t, strings.Contains(body, `fleetledger_payroll_operation_duration_seconds_count{op="payroll.close_period"} 3`))
}

func TestAddRunItemsIgnoresEmptyGenerations(t *testing.T) {
	metrics := NewMetrics()

	metrics.AddRunItems(0)
	metrics.AddRunItems(3)

	assert.Contains(t, scrape(t, metrics), "fleetledger_payroll_run_items_generated_total 3")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics

	metrics.ObservePayrollOperation("payroll.generate_run", nil, time.Second)
	metrics.AddRunItems(2)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
