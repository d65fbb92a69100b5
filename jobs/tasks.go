package jobs

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fleetledger/fleetledger/internal/payroll"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskPayrollSummaryWarmup recomputes the cached summary of one period.
	TaskPayrollSummaryWarmup = "payroll:summary_warmup"
	// TaskPayrollNightlyWarmup warms the summaries of every OPEN period.
	TaskPayrollNightlyWarmup = "payroll:nightly_warmup"
	// TaskPayrollRunAudit records a finalized run in the audit trail.
	TaskPayrollRunAudit = "payroll:run_audit"
)

// SummaryWarmupPayload identifies the period to warm.
type SummaryWarmupPayload struct {
	TenantID int64 `json:"tenant_id"`
	PeriodID int64 `json:"period_id"`
}

// NightlyWarmupPayload carries no fields; the job discovers OPEN periods.
type NightlyWarmupPayload struct{}

// RunAuditPayload freezes what was finalized.
type RunAuditPayload struct {
	TenantID    int64           `json:"tenant_id"`
	RunID       int64           `json:"run_id"`
	PeriodID    int64           `json:"period_id"`
	FinalizedBy *int64          `json:"finalized_by,omitempty"`
	FinalizedAt time.Time       `json:"finalized_at"`
	Snapshot    json.RawMessage `json:"snapshot"`
}

// NewSummaryWarmupTask constructs a summary warmup task.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollSummaryWarmup, data, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// NewNightlyWarmupTask constructs the scheduled warmup sweep.
func NewNightlyWarmupTask() (*asynq.Task, error) {
	data, err := json.Marshal(NightlyWarmupPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollNightlyWarmup, data, asynq.MaxRetry(1), asynq.Timeout(15*time.Minute)), nil
}

// NewRunAuditTask constructs the audit task for a finalized run.
func NewRunAuditTask(run payroll.Run) (*asynq.Task, error) {
	payload := RunAuditPayload{
		TenantID:    run.TenantID,
		RunID:       run.ID,
		PeriodID:    run.PeriodID,
		FinalizedBy: run.FinalizedBy,
	}
	if run.FinalizedAt != nil {
		payload.FinalizedAt = run.FinalizedAt.UTC()
	}
	if run.Snapshot != nil {
		snap, err := json.Marshal(run.Snapshot)
		if err != nil {
			return nil, err
		}
		payload.Snapshot = snap
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollRunAudit, data, asynq.MaxRetry(10)), nil
}

// runAuditTaskID deduplicates audit tasks per run while they are retained.
func runAuditTaskID(runID int64) string {
	return "payrun-audit-" + strconv.FormatInt(runID, 10)
}
