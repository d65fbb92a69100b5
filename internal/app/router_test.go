package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetledger/fleetledger/internal/observability"
	"github.com/fleetledger/fleetledger/internal/payroll"
	payrollhttp "github.com/fleetledger/fleetledger/internal/payroll/http"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *Config {
	return &Config{AppEnv: "test", RateLimitPerMinute: 1000}
}

func TestHealthzReportsChecks(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger: discard,
		Config: testConfig(),
		Checks: map[string]Pinger{
			"postgres": PingFunc(func(ctx context.Context) error { return nil }),
			"redis":    PingFunc(func(ctx context.Context) error { return errors.New("refused") }),
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "up", body.Checks["postgres"])
	assert.Equal(t, "down", body.Checks["redis"])
}

func TestRouterMountsPayrollAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := payroll.NewService(nil, payroll.DefaultConfig())
	router := NewRouter(RouterParams{
		Logger:         discard,
		Config:         testConfig(),
		PayrollHandler: payrollhttp.NewHandler(discard, svc),
		Metrics:        metrics,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payroll/pay-periods", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `fleetledger_http_requests_total{code="401"`))
}

func TestServiceTokenGuard(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.ServiceTokenHash = string(hash)
	router := NewRouter(RouterParams{Logger: discard, Config: cfg})

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"health is open", "/healthz", "", http.StatusOK},
		{"missing token", "/jobs/health", "", http.StatusUnauthorized},
		{"wrong token", "/jobs/health", "Bearer nope", http.StatusUnauthorized},
		{"valid token reaches router", "/jobs/health", "Bearer s3cret", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestRateLimitReturnsProblem(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	router := NewRouter(RouterParams{Logger: discard, Config: cfg})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Tenant-ID", "1")
		router.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Contains(t, last.Body.String(), "RATE_LIMITED")
}
