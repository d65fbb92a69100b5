package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type recordingExecer struct {
	calls []execCall
	err   error
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.calls = append(r.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func TestAuditLoggerRecordsMeta(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)
	at := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	err := logger.Record(context.Background(), AuditLog{
		ActorID:  9,
		Action:   "payrun.finalized",
		Entity:   "pay_run",
		EntityID: "12",
		Meta:     map[string]any{"net": "239.99"},
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)

	args := db.calls[0].args
	assert.Equal(t, int64(9), args[0])
	var meta map[string]any
	require.NoError(t, json.Unmarshal(args[4].([]byte), &meta))
	assert.Equal(t, "239.99", meta["net"])
	assert.Equal(t, &at, args[5])
}

func TestAuditLoggerRequiresIdentity(t *testing.T) {
	logger := NewAuditLogger(&recordingExecer{})

	assert.Error(t, logger.Record(context.Background(), AuditLog{Action: "x"}))

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "x", Entity: "y", EntityID: "1"}))
}

func TestIdempotencyStoreMapsUniqueViolation(t *testing.T) {
	db := &recordingExecer{err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"})}
	store := NewIdempotencyStore(db)

	err := store.CheckAndInsert(context.Background(), "payrun:1:finalized", "payroll.run_audit")
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestIdempotencyStorePassesOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewIdempotencyStore(&recordingExecer{err: boom})

	err := store.CheckAndInsert(context.Background(), "k", "m")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrIdempotencyConflict)
}

func TestIdempotencyStoreValidatesArguments(t *testing.T) {
	store := NewIdempotencyStore(&recordingExecer{})

	assert.Error(t, store.CheckAndInsert(context.Background(), "", "m"))
	assert.Error(t, store.CheckAndInsert(context.Background(), "k", ""))
	assert.Error(t, store.Delete(context.Background(), "", "m"))
}
