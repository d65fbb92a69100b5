package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetledger/fleetledger/internal/platform/db"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository provides PostgreSQL backed payroll persistence.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type pgTxRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a READ COMMITTED transaction so that a writer blocked on
// a row lock observes the committed state of the row once the lock is granted.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return translate(fn(ctx, &pgTxRepo{tx: tx}))
	})
}

// translate maps constraint violations onto payroll conflicts.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "pay_runs_natural_key":
			return ErrRunDuplicate.Wrap(err)
		default:
			return ErrEntryDuplicate.Wrap(err)
		}
	case "23P01":
		return ErrPeriodOverlap.Wrap(err)
	}
	return err
}

// ============================================================================
// PAY PERIODS
// ============================================================================

const periodColumns = `id, tenant_id, name, start_date, end_date, status, closed_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func getPeriod(ctx context.Context, q querier, tenantID, id int64, suffix string) (Period, error) {
	query := `SELECT ` + periodColumns + ` FROM pay_periods WHERE tenant_id = $1 AND id = $2` + suffix
	return scanPeriod(q.QueryRow(ctx, query, tenantID, id))
}

func listPeriods(ctx context.Context, q querier, query string, args ...any) ([]Period, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPeriod retrieves a period by id.
func (r *PostgresRepository) GetPeriod(ctx context.Context, tenantID, id int64) (Period, error) {
	return getPeriod(ctx, r.pool, tenantID, id, "")
}

// ListPeriods returns periods newest first.
func (r *PostgresRepository) ListPeriods(ctx context.Context, tenantID int64, status *PeriodStatus) ([]Period, error) {
	query := `SELECT ` + periodColumns + ` FROM pay_periods
		WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY start_date DESC, id DESC`
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	return listPeriods(ctx, r.pool, query, tenantID, filter)
}

// ListOpenPeriods returns every OPEN period across tenants.
func (r *PostgresRepository) ListOpenPeriods(ctx context.Context) ([]Period, error) {
	query := `SELECT ` + periodColumns + ` FROM pay_periods WHERE status = 'OPEN' ORDER BY tenant_id, start_date`
	return listPeriods(ctx, r.pool, query)
}

func (t *pgTxRepo) LockPeriod(ctx context.Context, tenantID, id int64, mode LockMode) (Period, error) {
	suffix := ` FOR SHARE`
	if mode == LockUpdate {
		suffix = ` FOR UPDATE`
	}
	return getPeriod(ctx, t.tx, tenantID, id, suffix)
}

func (t *pgTxRepo) PeriodOverlapExists(ctx context.Context, tenantID int64, start, end time.Time, excludeID int64) (bool, error) {
	return exists(ctx, t.tx, `SELECT EXISTS (
		SELECT 1 FROM pay_periods
		WHERE tenant_id = $1 AND status = 'OPEN' AND id <> $4
		  AND start_date <= $3 AND end_date >= $2)`, tenantID, start, end, excludeID)
}

func (t *pgTxRepo) DateInClosedPeriod(ctx context.Context, tenantID int64, day time.Time) (bool, error) {
	return exists(ctx, t.tx, `SELECT EXISTS (
		SELECT 1 FROM pay_periods
		WHERE tenant_id = $1 AND status = 'CLOSED' AND $2 BETWEEN start_date AND end_date)`, tenantID, day)
}

func (t *pgTxRepo) CountEntriesOutside(ctx context.Context, tenantID, periodID int64, start, end time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM pay_entries
		WHERE tenant_id = $1 AND pay_period_id = $2 AND status = 'ACTIVE'
		  AND (work_date < $3 OR work_date > $4)`, tenantID, periodID, start, end).Scan(&n)
	return n, err
}

func (t *pgTxRepo) PeriodHasFinalizedRun(ctx context.Context, tenantID, periodID int64) (bool, error) {
	return exists(ctx, t.tx, `SELECT EXISTS (
		SELECT 1 FROM pay_runs WHERE tenant_id = $1 AND pay_period_id = $2 AND status = 'FINALIZED')`, tenantID, periodID)
}

func (t *pgTxRepo) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	query := `INSERT INTO pay_periods (tenant_id, name, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + periodColumns
	return scanPeriod(t.tx.QueryRow(ctx, query, p.TenantID, p.Name, p.StartDate, p.EndDate, p.Status))
}

func (t *pgTxRepo) UpdatePeriod(ctx context.Context, p Period) (Period, error) {
	query := `UPDATE pay_periods
		SET name = $3, start_date = $4, end_date = $5, status = $6, closed_at = $7, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + periodColumns
	return scanPeriod(t.tx.QueryRow(ctx, query, p.TenantID, p.ID, p.Name, p.StartDate, p.EndDate, p.Status, p.ClosedAt))
}

// ============================================================================
// DRIVERS, PAYEES AND PROFILES
// ============================================================================

func (t *pgTxRepo) getDriver(ctx context.Context, tenantID, driverID int64, suffix string) (Driver, error) {
	var d Driver
	err := t.tx.QueryRow(ctx, `SELECT id, tenant_id, first_name, last_name, payee_id
		FROM drivers WHERE tenant_id = $1 AND id = $2`+suffix, tenantID, driverID).
		Scan(&d.ID, &d.TenantID, &d.FirstName, &d.LastName, &d.PayeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Driver{}, ErrDriverNotFound
		}
		return Driver{}, err
	}
	return d, nil
}

func (t *pgTxRepo) GetDriver(ctx context.Context, tenantID, driverID int64) (Driver, error) {
	return t.getDriver(ctx, tenantID, driverID, "")
}

// EnsurePayee returns the driver's payee, creating and linking an EMPLOYEE_DRIVER
// payee when the driver has none. The driver row is locked so concurrent
// generations agree.
func (t *pgTxRepo) EnsurePayee(ctx context.Context, driver Driver) (Payee, error) {
	locked, err := t.getDriver(ctx, driver.TenantID, driver.ID, ` FOR UPDATE`)
	if err != nil {
		return Payee{}, err
	}
	const payeeColumns = `id, tenant_id, payee_type, worker_type, display_name, is_active`
	var p Payee
	if locked.PayeeID != nil {
		err := t.tx.QueryRow(ctx, `SELECT `+payeeColumns+` FROM payees WHERE tenant_id = $1 AND id = $2`,
			locked.TenantID, *locked.PayeeID).
			Scan(&p.ID, &p.TenantID, &p.Type, &p.WorkerType, &p.DisplayName, &p.IsActive)
		if err != nil {
			return Payee{}, fmt.Errorf("load payee %d: %w", *locked.PayeeID, err)
		}
		return p, nil
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO payees (tenant_id, payee_type, worker_type, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+payeeColumns, locked.TenantID, PayeeDriver, WorkerEmployeeDriver, locked.DisplayName()).
		Scan(&p.ID, &p.TenantID, &p.Type, &p.WorkerType, &p.DisplayName, &p.IsActive)
	if err != nil {
		return Payee{}, fmt.Errorf("insert payee: %w", err)
	}
	if _, err := t.tx.Exec(ctx, `UPDATE drivers SET payee_id = $3 WHERE tenant_id = $1 AND id = $2`,
		locked.TenantID, locked.ID, p.ID); err != nil {
		return Payee{}, fmt.Errorf("link payee: %w", err)
	}
	return p, nil
}

const profileColumns = `id, tenant_id, driver_id, pay_type, rate_amount, rate_unit, percentage_basis_points,
	currency, notes, effective_start, effective_end, is_active, created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.TenantID, &p.DriverID, &p.PayType, &p.Rate, &p.RateUnit, &p.PercentageBasisPoints,
		&p.Currency, &p.Notes, &p.EffectiveStart, &p.EffectiveEnd, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// GetProfile retrieves a profile by id.
func (r *PostgresRepository) GetProfile(ctx context.Context, tenantID, id int64) (Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM pay_profiles WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// ListProfiles returns profiles ordered by driver then newest effective start.
func (r *PostgresRepository) ListProfiles(ctx context.Context, filter ListProfilesFilter) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM pay_profiles
		WHERE tenant_id = $1
		  AND ($2::bigint IS NULL OR driver_id = $2)
		  AND ($3 OR is_active)
		ORDER BY driver_id, effective_start DESC, id DESC`, filter.TenantID, filter.DriverID, filter.IncludeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTxRepo) LockProfile(ctx context.Context, tenantID, id int64) (Profile, error) {
	return scanProfile(t.tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM pay_profiles WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id))
}

func (t *pgTxRepo) ProfileOverlapExists(ctx context.Context, tenantID, driverID int64, start time.Time, end *time.Time, excludeID int64) (bool, error) {
	return exists(ctx, t.tx, `SELECT EXISTS (
		SELECT 1 FROM pay_profiles
		WHERE tenant_id = $1 AND driver_id = $2 AND is_active AND id <> $5
		  AND effective_start <= COALESCE($4::date, 'infinity'::date)
		  AND COALESCE(effective_end, 'infinity'::date) >= $3)`, tenantID, driverID, start, end, excludeID)
}

func (t *pgTxRepo) InsertProfile(ctx context.Context, p Profile) (Profile, error) {
	return scanProfile(t.tx.QueryRow(ctx, `INSERT INTO pay_profiles
		(tenant_id, driver_id, pay_type, rate_amount, rate_unit, percentage_basis_points, currency, notes,
		 effective_start, effective_end, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+profileColumns,
		p.TenantID, p.DriverID, p.PayType, p.Rate, p.RateUnit, p.PercentageBasisPoints, p.Currency, p.Notes,
		p.EffectiveStart, p.EffectiveEnd, p.IsActive))
}

func (t *pgTxRepo) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	return scanProfile(t.tx.QueryRow(ctx, `UPDATE pay_profiles
		SET rate_amount = $3, rate_unit = $4, percentage_basis_points = $5, currency = $6, notes = $7,
		    effective_start = $8, effective_end = $9, is_active = $10, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+profileColumns,
		p.TenantID, p.ID, p.Rate, p.RateUnit, p.PercentageBasisPoints, p.Currency, p.Notes,
		p.EffectiveStart, p.EffectiveEnd, p.IsActive))
}

// ============================================================================
// PAY ENTRIES
// ============================================================================

const entryColumns = `id, tenant_id, pay_period_id, driver_id, pay_profile_id, work_date, entry_type, reference_code,
	quantity, rate_amount, amount, notes, is_manual, status, deactivated_at, deactivated_reason,
	created_by, updated_by, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TenantID, &e.PeriodID, &e.DriverID, &e.ProfileID, &e.WorkDate, &e.Type, &e.ReferenceCode,
		&e.Quantity, &e.Rate, &e.Amount, &e.Notes, &e.IsManual, &e.Status, &e.DeactivatedAt, &e.DeactivatedReason,
		&e.CreatedBy, &e.UpdatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func listEntries(ctx context.Context, q querier, query string, args ...any) ([]Entry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEntry retrieves an entry by id.
func (r *PostgresRepository) GetEntry(ctx context.Context, tenantID, id int64) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM pay_entries WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// ListEntries returns a period's entries, newest id first.
func (r *PostgresRepository) ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error) {
	return listEntries(ctx, r.pool, `SELECT `+entryColumns+` FROM pay_entries
		WHERE tenant_id = $1 AND pay_period_id = $2
		  AND ($3::bigint IS NULL OR driver_id = $3)
		  AND ($4 OR status = 'ACTIVE')
		ORDER BY id DESC`, filter.TenantID, filter.PeriodID, filter.DriverID, filter.IncludeInactive)
}

// SummarizePeriod aggregates ACTIVE entries per driver.
func (r *PostgresRepository) SummarizePeriod(ctx context.Context, tenantID, periodID int64) ([]DriverSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT driver_id,
			COALESCE(SUM(quantity) FILTER (WHERE entry_type = 'MILES'), 0),
			COALESCE(SUM(quantity) FILTER (WHERE entry_type = 'HOURS'), 0),
			COALESCE(SUM(amount) FILTER (WHERE entry_type IN ('MILES', 'HOURS', 'GROSS', 'ADJUSTMENT')), 0),
			COALESCE(SUM(ABS(amount)) FILTER (WHERE entry_type = 'DEDUCTION'), 0)
		FROM pay_entries
		WHERE tenant_id = $1 AND pay_period_id = $2 AND status = 'ACTIVE'
		GROUP BY driver_id
		ORDER BY driver_id`, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DriverSummary
	for rows.Next() {
		var s DriverSummary
		if err := rows.Scan(&s.DriverID, &s.Miles, &s.Hours, &s.Earnings, &s.Deductions); err != nil {
			return nil, err
		}
		s.Net = s.Earnings.Sub(s.Deductions)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTxRepo) EntryKeyExists(ctx context.Context, key EntryKey, excludeID int64) (bool, error) {
	return exists(ctx, t.tx, `SELECT EXISTS (
		SELECT 1 FROM pay_entries
		WHERE tenant_id = $1 AND driver_id = $2 AND entry_type = $3 AND work_date = $4
		  AND reference_code = $5 AND id <> $6)`,
		key.TenantID, key.DriverID, key.Type, key.WorkDate, key.ReferenceCode, excludeID)
}

func (t *pgTxRepo) LockEntry(ctx context.Context, tenantID, id int64) (Entry, error) {
	return scanEntry(t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM pay_entries WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id))
}

func (t *pgTxRepo) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	return scanEntry(t.tx.QueryRow(ctx, `INSERT INTO pay_entries
		(tenant_id, pay_period_id, driver_id, pay_profile_id, work_date, entry_type, reference_code,
		 quantity, rate_amount, amount, notes, is_manual, status, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+entryColumns,
		e.TenantID, e.PeriodID, e.DriverID, e.ProfileID, e.WorkDate, e.Type, e.ReferenceCode,
		e.Quantity, e.Rate, e.Amount, e.Notes, e.IsManual, e.Status, e.CreatedBy, e.UpdatedBy))
}

func (t *pgTxRepo) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	return scanEntry(t.tx.QueryRow(ctx, `UPDATE pay_entries
		SET quantity = $3, rate_amount = $4, amount = $5, reference_code = $6, notes = $7, status = $8,
		    deactivated_at = $9, deactivated_reason = $10, updated_by = $11, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+entryColumns,
		e.TenantID, e.ID, e.Quantity, e.Rate, e.Amount, e.ReferenceCode, e.Notes, e.Status,
		e.DeactivatedAt, e.DeactivatedReason, e.UpdatedBy))
}

func (t *pgTxRepo) ListActiveEntries(ctx context.Context, tenantID, periodID int64) ([]Entry, error) {
	return listEntries(ctx, t.tx, `SELECT `+entryColumns+` FROM pay_entries
		WHERE tenant_id = $1 AND pay_period_id = $2 AND status = 'ACTIVE'
		ORDER BY work_date, id`, tenantID, periodID)
}

// ============================================================================
// PAY RUNS
// ============================================================================

const runColumns = `id, tenant_id, pay_period_id, pay_document_type, worker_type_snapshot, base_currency_snapshot,
	pay_date, status, payout_status, calculation_snapshot_json, generation_id, generated_at,
	finalized_at, finalized_by, created_at, updated_at`

func scanRun(row pgx.Row) (Run, error) {
	var (
		r        Run
		snapshot []byte
		genID    pgtype.UUID
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.PeriodID, &r.DocumentType, &r.WorkerType, &r.Currency,
		&r.PayDate, &r.Status, &r.PayoutStatus, &snapshot, &genID, &r.GeneratedAt,
		&r.FinalizedAt, &r.FinalizedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	if len(snapshot) > 0 {
		var snap Snapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return Run{}, fmt.Errorf("decode run %d snapshot: %w", r.ID, err)
		}
		r.Snapshot = &snap
	}
	if genID.Valid {
		id := uuid.UUID(genID.Bytes)
		r.GenerationID = &id
	}
	return r, nil
}

// GetRun retrieves a run without items.
func (r *PostgresRepository) GetRun(ctx context.Context, tenantID, id int64) (Run, error) {
	return scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pay_runs WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// ListRuns returns runs newest first.
func (r *PostgresRepository) ListRuns(ctx context.Context, filter ListRunsFilter) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM pay_runs
		WHERE tenant_id = $1 AND ($2::bigint IS NULL OR pay_period_id = $2)
		ORDER BY id DESC`, filter.TenantID, filter.PeriodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListRunItems returns the run's items in generation order.
func (r *PostgresRepository) ListRunItems(ctx context.Context, tenantID, runID int64) ([]RunItem, error) {
	return listRunItems(ctx, r.pool, tenantID, runID)
}

func (t *pgTxRepo) LockRun(ctx context.Context, tenantID, id int64) (Run, error) {
	return scanRun(t.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM pay_runs WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id))
}

func (t *pgTxRepo) InsertRunIfAbsent(ctx context.Context, run Run) (Run, bool, error) {
	inserted, err := scanRun(t.tx.QueryRow(ctx, `INSERT INTO pay_runs
		(tenant_id, pay_period_id, pay_document_type, worker_type_snapshot, base_currency_snapshot,
		 pay_date, status, payout_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT pay_runs_natural_key DO NOTHING
		RETURNING `+runColumns,
		run.TenantID, run.PeriodID, run.DocumentType, run.WorkerType, run.Currency,
		run.PayDate, run.Status, run.PayoutStatus))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, ErrRunNotFound) {
		return Run{}, false, err
	}
	existing, err := scanRun(t.tx.QueryRow(ctx, `SELECT `+runColumns+` FROM pay_runs
		WHERE tenant_id = $1 AND pay_period_id = $2 AND pay_document_type = $3 AND worker_type_snapshot = $4`,
		run.TenantID, run.PeriodID, run.DocumentType, run.WorkerType))
	if err != nil {
		return Run{}, false, err
	}
	return existing, false, nil
}

func (t *pgTxRepo) UpdateRunStatus(ctx context.Context, run Run) error {
	var snapshot []byte
	if run.Snapshot != nil {
		raw, err := json.Marshal(run.Snapshot)
		if err != nil {
			return err
		}
		snapshot = raw
	}
	_, err := t.tx.Exec(ctx, `UPDATE pay_runs
		SET status = $3, calculation_snapshot_json = $4, finalized_at = $5, finalized_by = $6, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		run.TenantID, run.ID, run.Status, snapshot, run.FinalizedAt, run.FinalizedBy)
	return err
}

func (t *pgTxRepo) MarkGenerated(ctx context.Context, tenantID, runID int64, generationID uuid.UUID, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE pay_runs
		SET status = 'GENERATED', generation_id = $3, generated_at = $4,
		    calculation_snapshot_json = NULL, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, runID, pgtype.UUID{Bytes: generationID, Valid: true}, at)
	return err
}

func (t *pgTxRepo) DeleteRunItems(ctx context.Context, tenantID, runID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM pay_run_items WHERE tenant_id = $1 AND pay_run_id = $2`, tenantID, runID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTxRepo) InsertRunItems(ctx context.Context, items []RunItem) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		meta, err := json.Marshal(item.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO pay_run_items
			(tenant_id, pay_run_id, payee_id, source_type, charge_category_id, description,
			 quantity, unit_rate, amount_signed, currency, metadata_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			item.TenantID, item.RunID, item.PayeeID, item.SourceType, item.ChargeCategoryID, item.Description,
			item.Quantity, item.UnitRate, item.AmountSigned, item.Currency, meta)
	}
	results := t.tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert pay run item: %w", err)
		}
	}
	return results.Close()
}

func (t *pgTxRepo) ListRunItems(ctx context.Context, tenantID, runID int64) ([]RunItem, error) {
	return listRunItems(ctx, t.tx, tenantID, runID)
}

func listRunItems(ctx context.Context, q querier, tenantID, runID int64) ([]RunItem, error) {
	rows, err := q.Query(ctx, `SELECT id, tenant_id, pay_run_id, payee_id, source_type, charge_category_id, description,
			quantity, unit_rate, amount_signed, currency, metadata_json, created_at
		FROM pay_run_items
		WHERE tenant_id = $1 AND pay_run_id = $2
		ORDER BY id`, tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]RunItem, 0)
	for rows.Next() {
		var (
			item RunItem
			meta []byte
		)
		if err := rows.Scan(&item.ID, &item.TenantID, &item.RunID, &item.PayeeID, &item.SourceType,
			&item.ChargeCategoryID, &item.Description, &item.Quantity, &item.UnitRate, &item.AmountSigned,
			&item.Currency, &meta, &item.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &item.Metadata); err != nil {
			return nil, fmt.Errorf("decode pay run item %d metadata: %w", item.ID, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, query, args...).Scan(&ok)
	return ok, err
}

// Compile-time interface checks.
var (
	_ Repository   = (*PostgresRepository)(nil)
	_ TxRepository = (*pgTxRepo)(nil)
)
