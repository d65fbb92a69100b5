package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LockMode selects the row lock taken on a pay period.
type LockMode int

const (
	// LockShare blocks status changes while entries are written.
	LockShare LockMode = iota
	// LockUpdate serialises status changes.
	LockUpdate
)

// Repository defines pay period, entry and run persistence.
type Repository interface {
	// Read operations
	GetPeriod(ctx context.Context, tenantID, id int64) (Period, error)
	ListPeriods(ctx context.Context, tenantID int64, status *PeriodStatus) ([]Period, error)
	GetEntry(ctx context.Context, tenantID, id int64) (Entry, error)
	ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error)
	GetProfile(ctx context.Context, tenantID, id int64) (Profile, error)
	ListProfiles(ctx context.Context, filter ListProfilesFilter) ([]Profile, error)
	GetRun(ctx context.Context, tenantID, id int64) (Run, error)
	ListRuns(ctx context.Context, filter ListRunsFilter) ([]Run, error)
	ListRunItems(ctx context.Context, tenantID, runID int64) ([]RunItem, error)
	SummarizePeriod(ctx context.Context, tenantID, periodID int64) ([]DriverSummary, error)
	ListOpenPeriods(ctx context.Context) ([]Period, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations that run inside one locked transaction.
type TxRepository interface {
	LockPeriod(ctx context.Context, tenantID, id int64, mode LockMode) (Period, error)
	PeriodOverlapExists(ctx context.Context, tenantID int64, start, end time.Time, excludeID int64) (bool, error)
	DateInClosedPeriod(ctx context.Context, tenantID int64, day time.Time) (bool, error)
	CountEntriesOutside(ctx context.Context, tenantID, periodID int64, start, end time.Time) (int, error)
	PeriodHasFinalizedRun(ctx context.Context, tenantID, periodID int64) (bool, error)
	InsertPeriod(ctx context.Context, p Period) (Period, error)
	UpdatePeriod(ctx context.Context, p Period) (Period, error)

	GetDriver(ctx context.Context, tenantID, driverID int64) (Driver, error)
	LockProfile(ctx context.Context, tenantID, id int64) (Profile, error)
	ProfileOverlapExists(ctx context.Context, tenantID, driverID int64, start time.Time, end *time.Time, excludeID int64) (bool, error)
	InsertProfile(ctx context.Context, p Profile) (Profile, error)
	UpdateProfile(ctx context.Context, p Profile) (Profile, error)

	EntryKeyExists(ctx context.Context, key EntryKey, excludeID int64) (bool, error)
	LockEntry(ctx context.Context, tenantID, id int64) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) (Entry, error)
	ListActiveEntries(ctx context.Context, tenantID, periodID int64) ([]Entry, error)

	LockRun(ctx context.Context, tenantID, id int64) (Run, error)
	InsertRunIfAbsent(ctx context.Context, r Run) (Run, bool, error)
	UpdateRunStatus(ctx context.Context, r Run) error
	MarkGenerated(ctx context.Context, tenantID, runID int64, generationID uuid.UUID, at time.Time) error
	DeleteRunItems(ctx context.Context, tenantID, runID int64) (int64, error)
	InsertRunItems(ctx context.Context, items []RunItem) error
	ListRunItems(ctx context.Context, tenantID, runID int64) ([]RunItem, error)

	// EnsurePayee returns the driver's payee. A driver without one gets an
	// EMPLOYEE_DRIVER payee linked to it.
	EnsurePayee(ctx context.Context, driver Driver) (Payee, error)
}
