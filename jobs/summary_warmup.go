package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fleetledger/fleetledger/internal/jobs"
	"github.com/fleetledger/fleetledger/internal/payroll"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

type summaryWarmer interface {
	WarmSummary(ctx context.Context, tenantID, periodID int64) error
	OpenPeriods(ctx context.Context) ([]payroll.Period, error)
}

// SummaryWarmupJob recomputes cached period summaries.
type SummaryWarmupJob struct {
	Payroll summaryWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSummaryWarmupJob wires dependencies for the warmup handlers.
func NewSummaryWarmupJob(svc summaryWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{Payroll: svc, Logger: logger, Metrics: metrics}
}

// Handle warms one period named by the task payload.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Payroll == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID <= 0 || payload.PeriodID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskPayrollSummaryWarmup)
	logger := j.logger(TaskPayrollSummaryWarmup).With(slog.Int64("tenant_id", payload.TenantID), slog.Int64("period_id", payload.PeriodID))

	err := j.Payroll.WarmSummary(ctx, payload.TenantID, payload.PeriodID)
	if errors.Is(err, payroll.ErrPeriodNotFound) {
		logger.Info("period vanished before warmup")
		tracker.Skip()
		return nil
	}
	if err != nil {
		logger.Error("warm summary", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().AddSummariesWarmed(1)
	return tracker.End(nil)
}

// HandleNightly warms every OPEN period. One failing period does not stop
// the sweep; the first error is returned so the task is retried.
func (j *SummaryWarmupJob) HandleNightly(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Payroll == nil {
		return errors.New("nightly warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskPayrollNightlyWarmup)
	logger := j.logger(TaskPayrollNightlyWarmup)
	start := time.Now()

	periods, err := j.Payroll.OpenPeriods(ctx)
	if err != nil {
		logger.Error("load open periods", slog.Any("error", err))
		return tracker.End(err)
	}

	var firstErr error
	warmed := 0
	for _, p := range periods {
		periodCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		err := j.Payroll.WarmSummary(periodCtx, p.TenantID, p.ID)
		cancel()
		if err != nil {
			logger.Warn("warm period", slog.Int64("tenant_id", p.TenantID), slog.Int64("period_id", p.ID), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		warmed++
	}
	j.metrics().AddSummariesWarmed(warmed)
	logger.Info("completed nightly warmup", slog.Int("periods", len(periods)), slog.Int("warmed", warmed), slog.Duration("duration", time.Since(start)))
	return tracker.End(firstErr)
}

func (j *SummaryWarmupJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
