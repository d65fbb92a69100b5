package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fleetledger/fleetledger/internal/jobs"
	"github.com/fleetledger/fleetledger/internal/shared"
)

const runAuditModule = "payroll.run_audit"

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type idempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// RunAuditJob writes one audit_logs row per finalized run.
type RunAuditJob struct {
	Audit       auditRecorder
	Idempotency idempotencyStore
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewRunAuditJob wires the audit handler.
func NewRunAuditJob(audit auditRecorder, idem idempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *RunAuditJob {
	return &RunAuditJob{Audit: audit, Idempotency: idem, Logger: logger, Metrics: metrics}
}

// Handle records the finalized snapshot. Redelivered tasks are acknowledged
// without writing a second row.
func (j *RunAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil || j.Idempotency == nil {
		return errors.New("run audit: handler not configured")
	}
	var payload RunAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID <= 0 || payload.RunID <= 0 {
		return asynq.SkipRetry
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskPayrollRunAudit)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskPayrollRunAudit), slog.Int64("tenant_id", payload.TenantID), slog.Int64("run_id", payload.RunID))

	key := "payrun:" + strconv.FormatInt(payload.RunID, 10) + ":finalized"
	if err := j.Idempotency.CheckAndInsert(ctx, key, runAuditModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			metrics.AuditDuplicate()
			logger.Info("run audit already recorded")
			tracker.Skip()
			return nil
		}
		return tracker.End(err)
	}

	meta := map[string]any{
		"tenant_id": payload.TenantID,
		"period_id": payload.PeriodID,
	}
	if len(payload.Snapshot) > 0 {
		var snapshot map[string]any
		if err := json.Unmarshal(payload.Snapshot, &snapshot); err == nil {
			meta["snapshot"] = snapshot
		}
	}
	var actor int64
	if payload.FinalizedBy != nil {
		actor = *payload.FinalizedBy
	}
	err := j.Audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   "payrun.finalized",
		Entity:   "pay_run",
		EntityID: strconv.FormatInt(payload.RunID, 10),
		Meta:     meta,
		At:       payload.FinalizedAt,
	})
	if err != nil {
		if delErr := j.Idempotency.Delete(ctx, key, runAuditModule); delErr != nil {
			logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
		logger.Error("record run audit", slog.Any("error", err))
		return tracker.End(err)
	}
	metrics.AuditRecorded()
	return tracker.End(nil)
}
