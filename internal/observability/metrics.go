package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payrollOps      *prometheus.CounterVec
	payrollDuration *prometheus.HistogramVec
	runItems        prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and payroll collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetledger_http_requests_total",
		Help: "HTTP requests partitioned by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetledger_payroll_operations_total",
		Help: "Payroll engine operations partitioned by operation and outcome.",
	}, []string{"op", "outcome"})
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetledger_payroll_operation_duration_seconds",
		Help:    "Payroll engine operation duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	items := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleetledger_payroll_run_items_generated_total",
		Help: "Pay run items written by generation.",
	})
	registry.MustRegister(requests, duration, ops, opDuration, items)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		payrollOps:      ops,
		payrollDuration: opDuration,
		runItems:        items,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePayrollOperation records one engine call. The outcome label is
// "success", the error code of a coded failure, or "error".
func (m *Metrics) ObservePayrollOperation(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.payrollOps.WithLabelValues(op, outcome(err)).Inc()
	m.payrollDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// AddRunItems counts items produced by a generation pass.
func (m *Metrics) AddRunItems(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.runItems.Add(float64(count))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) && coded.ErrorCode() != "" {
		return coded.ErrorCode()
	}
	return "error"
}
