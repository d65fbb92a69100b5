// Package jobmetrics instruments the asynq task handlers.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes recorded on fleetledger_jobs_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the task and payroll job collectors.
type Metrics struct {
	tasks    *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	warmed   prometheus.Counter
	audits   *prometheus.CounterVec
}

var (
	sharedOnce    sync.Once
	sharedMetrics *Metrics
)

// NewMetrics registers collectors on reg. A nil reg returns a process-wide
// instance registered on the default registerer, so handlers built more than
// once never panic on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	sharedOnce.Do(func() {
		sharedMetrics = register(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetledger_jobs_total",
			Help: "Task executions by asynq task type and outcome.",
		}, []string{"task", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetledger_jobs_failures_total",
			Help: "Failed task executions by asynq task type.",
		}, []string{"task"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetledger_job_duration_seconds",
			Help:    "Task handler latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		warmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetledger_payroll_summaries_warmed_total",
			Help: "Period summaries recomputed by warmup tasks.",
		}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetledger_payroll_run_audits_total",
			Help: "Finalized run audit tasks by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.tasks, m.failures, m.latency, m.warmed, m.audits)
	return m
}

// Span times one handler invocation.
type Span struct {
	m     *Metrics
	task  string
	start time.Time
	done  bool
}

// Track starts a span for the task type. It is safe on a nil *Metrics.
func (m *Metrics) Track(task string) *Span {
	return &Span{m: m, task: task, start: time.Now()}
}

// End records success or failure and returns err unchanged.
func (s *Span) End(err error) error {
	if err != nil {
		s.finish(OutcomeFailure)
		return err
	}
	s.finish(OutcomeSuccess)
	return nil
}

// Skip records a run that intentionally did no work.
func (s *Span) Skip() {
	s.finish(OutcomeSkipped)
}

func (s *Span) finish(outcome string) {
	if s == nil || s.done || s.m == nil {
		return
	}
	s.done = true
	s.m.tasks.WithLabelValues(s.task, outcome).Inc()
	if outcome == OutcomeFailure {
		s.m.failures.WithLabelValues(s.task).Inc()
	}
	s.m.latency.WithLabelValues(s.task).Observe(time.Since(s.start).Seconds())
}

// AddSummariesWarmed counts summaries recomputed into the cache.
func (m *Metrics) AddSummariesWarmed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.warmed.Add(float64(n))
}

// AuditRecorded counts a run snapshot written to the audit log.
func (m *Metrics) AuditRecorded() {
	if m != nil {
		m.audits.WithLabelValues("recorded").Inc()
	}
}

// AuditDuplicate counts a redelivered audit task that was already recorded.
func (m *Metrics) AuditDuplicate() {
	if m != nil {
		m.audits.WithLabelValues("duplicate").Inc()
	}
}
