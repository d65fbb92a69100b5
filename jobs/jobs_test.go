package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/fleetledger/fleetledger/internal/jobs"
	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/shared"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeWarmer struct {
	mu      sync.Mutex
	open    []payroll.Period
	fail    map[int64]error
	warmed  []int64
	openErr error
}

func (f *fakeWarmer) WarmSummary(ctx context.Context, tenantID, periodID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[periodID]; err != nil {
		return err
	}
	f.warmed = append(f.warmed, periodID)
	return nil
}

func (f *fakeWarmer) OpenPeriods(ctx context.Context) ([]payroll.Period, error) {
	return f.open, f.openErr
}

type fakeAudit struct {
	logs []shared.AuditLog
	err  error
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

type fakeIdempotency struct {
	keys    map[string]struct{}
	deleted []string
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys == nil {
		f.keys = make(map[string]struct{})
	}
	k := module + "/" + key
	if _, ok := f.keys[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	f.keys[k] = struct{}{}
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key, module string) error {
	delete(f.keys, module+"/"+key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	ids   map[string]struct{}
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id := o.Value().(string)
			if f.ids == nil {
				f.ids = make(map[string]struct{})
			}
			if _, ok := f.ids[id]; ok {
				return nil, asynq.ErrTaskIDConflict
			}
			f.ids[id] = struct{}{}
		}
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func newMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func mustTask(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, data)
}

func TestSummaryWarmupWarmsPeriod(t *testing.T) {
	warmer := &fakeWarmer{}
	job := NewSummaryWarmupJob(warmer, discard, newMetrics())

	err := job.Handle(context.Background(), mustTask(t, TaskPayrollSummaryWarmup, SummaryWarmupPayload{TenantID: 1, PeriodID: 4}))

	require.NoError(t, err)
	assert.Equal(t, []int64{4}, warmer.warmed)
}

func TestSummaryWarmupSkipsBadPayload(t *testing.T) {
	job := NewSummaryWarmupJob(&fakeWarmer{}, discard, newMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskPayrollSummaryWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), mustTask(t, TaskPayrollSummaryWarmup, SummaryWarmupPayload{TenantID: 1}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSummaryWarmupIgnoresMissingPeriod(t *testing.T) {
	warmer := &fakeWarmer{fail: map[int64]error{4: payroll.ErrPeriodNotFound}}
	job := NewSummaryWarmupJob(warmer, discard, newMetrics())

	err := job.Handle(context.Background(), mustTask(t, TaskPayrollSummaryWarmup, SummaryWarmupPayload{TenantID: 1, PeriodID: 4}))

	assert.NoError(t, err)
}

func TestNightlyWarmupContinuesPastFailures(t *testing.T) {
	boom := errors.New("redis down")
	warmer := &fakeWarmer{
		open: []payroll.Period{{ID: 1, TenantID: 1}, {ID: 2, TenantID: 1}, {ID: 3, TenantID: 2}},
		fail: map[int64]error{2: boom},
	}
	job := NewSummaryWarmupJob(warmer, discard, newMetrics())

	err := job.HandleNightly(context.Background(), mustTask(t, TaskPayrollNightlyWarmup, NightlyWarmupPayload{}))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int64{1, 3}, warmer.warmed)
}

func TestRunAuditRecordsOnce(t *testing.T) {
	audit := &fakeAudit{}
	idem := &fakeIdempotency{}
	job := NewRunAuditJob(audit, idem, discard, newMetrics())

	actor := int64(42)
	at := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	task, err := NewRunAuditTask(payroll.Run{
		ID:          12,
		TenantID:    1,
		PeriodID:    3,
		FinalizedBy: &actor,
		FinalizedAt: &at,
		Snapshot: &payroll.Snapshot{
			Gross:        decimal.RequireFromString("275"),
			Net:          decimal.RequireFromString("239.99"),
			BySourceType: map[payroll.SourceType]decimal.Decimal{payroll.SourceEarning: decimal.RequireFromString("275")},
			Count:        2,
		},
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, int64(42), log.ActorID)
	assert.Equal(t, "12", log.EntityID)
	assert.Equal(t, at, log.At)
	snapshot, ok := log.Meta["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "239.99", snapshot["net"])
}

func TestRunAuditReleasesKeyOnFailure(t *testing.T) {
	boom := errors.New("insert failed")
	audit := &fakeAudit{err: boom}
	idem := &fakeIdempotency{}
	job := NewRunAuditJob(audit, idem, discard, newMetrics())

	err := job.Handle(context.Background(), mustTask(t, TaskPayrollRunAudit, RunAuditPayload{TenantID: 1, RunID: 5}))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"payrun:5:finalized"}, idem.deleted)

	audit.err = nil
	require.NoError(t, job.Handle(context.Background(), mustTask(t, TaskPayrollRunAudit, RunAuditPayload{TenantID: 1, RunID: 5})))
	assert.Len(t, audit.logs, 1)
}

func TestClientNotifiesPayrollEvents(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := &Client{client: enq}
	ctx := context.Background()

	require.NoError(t, client.PeriodClosed(ctx, payroll.Period{ID: 3, TenantID: 1}))
	require.NoError(t, client.RunFinalized(ctx, payroll.Run{ID: 9, TenantID: 1, PeriodID: 3}))
	require.NoError(t, client.RunFinalized(ctx, payroll.Run{ID: 9, TenantID: 1, PeriodID: 3}))

	require.Len(t, enq.tasks, 2)
	assert.Equal(t, TaskPayrollSummaryWarmup, enq.tasks[0].Type())
	assert.Equal(t, TaskPayrollRunAudit, enq.tasks[1].Type())

	var payload SummaryWarmupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, SummaryWarmupPayload{TenantID: 1, PeriodID: 3}, payload)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, discard).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
}
