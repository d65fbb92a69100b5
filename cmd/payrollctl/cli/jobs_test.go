package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetledger/fleetledger/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func (s stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

func (s stubInspector) Close() error { return nil }

func TestTriggerSummaryWarmupRequiresScope(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &JobsCLI{client: enq}

	_, err := c.Trigger(context.Background(), jobs.TaskPayrollSummaryWarmup, TriggerParams{TenantID: 1})
	require.Error(t, err)

	info, err := c.Trigger(context.Background(), jobs.TaskPayrollSummaryWarmup, TriggerParams{TenantID: 1, PeriodID: 2})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskPayrollSummaryWarmup, info.Type)

	var payload jobs.SummaryWarmupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(2), payload.PeriodID)
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := &JobsCLI{client: &stubEnqueuer{}}

	_, err := c.Trigger(context.Background(), "payroll:nope", TriggerParams{})
	assert.ErrorContains(t, err, "unsupported job")
}

func TestRunTriggerCommand(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &JobsCLI{client: enq}
	var stdout, stderr bytes.Buffer

	code := c.Run(context.Background(), []string{"trigger", jobs.TaskPayrollNightlyWarmup}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "enqueued payroll:nightly_warmup")
	require.Len(t, enq.tasks, 1)
}

func TestRunStatsCommand(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}}}
	var stdout, stderr bytes.Buffer

	code := c.Run(context.Background(), []string{"stats"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 1, stats.Retry)
}

func TestRunStatsMissingQueue(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{err: asynq.ErrQueueNotFound}}
	var stdout, stderr bytes.Buffer

	code := c.Run(context.Background(), []string{"stats"}, &stdout, &stderr)

	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), `"pending": 0`)
}

func TestRunUnknownSubcommand(t *testing.T) {
	c := &JobsCLI{}
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, c.Run(context.Background(), []string{"purge"}, &stdout, &stderr))
	assert.Equal(t, 2, c.Run(context.Background(), nil, &stdout, &stderr))
}
