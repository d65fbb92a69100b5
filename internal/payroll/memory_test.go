package payroll

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetledger/fleetledger/internal/money"
)

// memoryState is copied at the start of every transaction and swapped in on
// commit, so a failed callback leaves the committed state untouched.
type memoryState struct {
	periods  map[int64]Period
	entries  map[int64]Entry
	profiles map[int64]Profile
	runs     map[int64]Run
	items    map[int64][]RunItem
	drivers  map[int64]Driver
	payees   map[int64]Payee
	nextID   int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		periods:  make(map[int64]Period),
		entries:  make(map[int64]Entry),
		profiles: make(map[int64]Profile),
		runs:     make(map[int64]Run),
		items:    make(map[int64][]RunItem),
		drivers:  make(map[int64]Driver),
		payees:   make(map[int64]Payee),
	}
}

func (s *memoryState) clone() *memoryState {
	cp := newMemoryState()
	cp.nextID = s.nextID
	for k, v := range s.periods {
		cp.periods[k] = v
	}
	for k, v := range s.entries {
		cp.entries[k] = v
	}
	for k, v := range s.profiles {
		cp.profiles[k] = v
	}
	for k, v := range s.runs {
		cp.runs[k] = v
	}
	for k, v := range s.items {
		cp.items[k] = append([]RunItem(nil), v...)
	}
	for k, v := range s.drivers {
		cp.drivers[k] = v
	}
	for k, v := range s.payees {
		cp.payees[k] = v
	}
	return cp
}

func (s *memoryState) id() int64 {
	s.nextID++
	return s.nextID
}

// memoryRepo serialises transactions behind one mutex, which stands in for the
// row locks the Postgres repository takes.
type memoryRepo struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time

	failInsertItems error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		state: newMemoryState(),
		now:   func() time.Time { return time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC) },
	}
}

func (r *memoryRepo) addDriver(tenantID int64, first, last string) Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := Driver{ID: r.state.id(), TenantID: tenantID, FirstName: first, LastName: last}
	r.state.drivers[d.ID] = d
	return d
}

func (r *memoryRepo) addPayee(driverID int64, workerType WorkerType) Payee {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.state.drivers[driverID]
	p := Payee{ID: r.state.id(), TenantID: d.TenantID, Type: PayeeDriver, WorkerType: workerType, DisplayName: d.DisplayName(), IsActive: true}
	r.state.payees[p.ID] = p
	d.PayeeID = &p.ID
	r.state.drivers[d.ID] = d
	return p
}

func (r *memoryRepo) activeEntryCount(tenantID, periodID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.state.entries {
		if e.TenantID == tenantID && e.PeriodID == periodID && e.Active() {
			n++
		}
	}
	return n
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	if err := fn(ctx, &memoryTx{repo: r, s: work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memoryRepo) GetPeriod(_ context.Context, tenantID, id int64) (Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return getMemoryPeriod(r.state, tenantID, id)
}

func (r *memoryRepo) ListPeriods(_ context.Context, tenantID int64, status *PeriodStatus) ([]Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Period
	for _, p := range r.state.periods {
		if p.TenantID != tenantID || (status != nil && p.Status != *status) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) ListOpenPeriods(_ context.Context) ([]Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Period
	for _, p := range r.state.periods {
		if p.Status == PeriodStatusOpen {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetEntry(_ context.Context, tenantID, id int64) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.state.entries[id]
	if !ok || e.TenantID != tenantID {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) ListEntries(_ context.Context, filter ListEntriesFilter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.state.entries {
		if e.TenantID != filter.TenantID || e.PeriodID != filter.PeriodID {
			continue
		}
		if filter.DriverID != nil && e.DriverID != *filter.DriverID {
			continue
		}
		if !filter.IncludeInactive && !e.Active() {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetProfile(_ context.Context, tenantID, id int64) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.state.profiles[id]
	if !ok || p.TenantID != tenantID {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListProfiles(_ context.Context, filter ListProfilesFilter) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Profile
	for _, p := range r.state.profiles {
		if p.TenantID != filter.TenantID || (filter.DriverID != nil && p.DriverID != *filter.DriverID) {
			continue
		}
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetRun(_ context.Context, tenantID, id int64) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.state.runs[id]
	if !ok || run.TenantID != tenantID {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (r *memoryRepo) ListRuns(_ context.Context, filter ListRunsFilter) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Run
	for _, run := range r.state.runs {
		if run.TenantID != filter.TenantID || (filter.PeriodID != nil && run.PeriodID != *filter.PeriodID) {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) ListRunItems(_ context.Context, tenantID, runID int64) ([]RunItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return listMemoryItems(r.state, tenantID, runID), nil
}

func (r *memoryRepo) SummarizePeriod(_ context.Context, tenantID, periodID int64) ([]DriverSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []Entry
	for _, e := range r.state.entries {
		if e.TenantID == tenantID && e.PeriodID == periodID {
			entries = append(entries, e)
		}
	}
	return summarizeEntries(entries), nil
}

func getMemoryPeriod(s *memoryState, tenantID, id int64) (Period, error) {
	p, ok := s.periods[id]
	if !ok || p.TenantID != tenantID {
		return Period{}, ErrPeriodNotFound
	}
	return p, nil
}

func listMemoryItems(s *memoryState, tenantID, runID int64) []RunItem {
	run, ok := s.runs[runID]
	if !ok || run.TenantID != tenantID {
		return []RunItem{}
	}
	return append([]RunItem{}, s.items[runID]...)
}

type memoryTx struct {
	repo *memoryRepo
	s    *memoryState
}

func (t *memoryTx) LockPeriod(_ context.Context, tenantID, id int64, _ LockMode) (Period, error) {
	return getMemoryPeriod(t.s, tenantID, id)
}

func (t *memoryTx) PeriodOverlapExists(_ context.Context, tenantID int64, start, end time.Time, excludeID int64) (bool, error) {
	for _, p := range t.s.periods {
		if p.TenantID == tenantID && p.ID != excludeID && p.Status == PeriodStatusOpen && p.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) DateInClosedPeriod(_ context.Context, tenantID int64, day time.Time) (bool, error) {
	for _, p := range t.s.periods {
		if p.TenantID == tenantID && p.Status == PeriodStatusClosed && p.Contains(day) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) CountEntriesOutside(_ context.Context, tenantID, periodID int64, start, end time.Time) (int, error) {
	window := Period{StartDate: start, EndDate: end}
	n := 0
	for _, e := range t.s.entries {
		if e.TenantID == tenantID && e.PeriodID == periodID && e.Active() && !window.Contains(e.WorkDate) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) PeriodHasFinalizedRun(_ context.Context, tenantID, periodID int64) (bool, error) {
	for _, run := range t.s.runs {
		if run.TenantID == tenantID && run.PeriodID == periodID && run.Status == RunStatusFinalized {
			return true, nil
		}
	}
	return false, nil
}

// checkOpenOverlap plays the part of the exclusion constraint.
func (t *memoryTx) checkOpenOverlap(p Period) error {
	if p.Status != PeriodStatusOpen {
		return nil
	}
	overlap, _ := t.PeriodOverlapExists(context.Background(), p.TenantID, p.StartDate, p.EndDate, p.ID)
	if overlap {
		return ErrPeriodOverlap
	}
	return nil
}

func (t *memoryTx) InsertPeriod(_ context.Context, p Period) (Period, error) {
	if err := t.checkOpenOverlap(p); err != nil {
		return Period{}, err
	}
	p.ID = t.s.id()
	p.CreatedAt = t.repo.now()
	p.UpdatedAt = p.CreatedAt
	t.s.periods[p.ID] = p
	return p, nil
}

func (t *memoryTx) UpdatePeriod(_ context.Context, p Period) (Period, error) {
	if err := t.checkOpenOverlap(p); err != nil {
		return Period{}, err
	}
	p.UpdatedAt = t.repo.now()
	t.s.periods[p.ID] = p
	return p, nil
}

func (t *memoryTx) GetDriver(_ context.Context, tenantID, driverID int64) (Driver, error) {
	d, ok := t.s.drivers[driverID]
	if !ok || d.TenantID != tenantID {
		return Driver{}, ErrDriverNotFound
	}
	return d, nil
}

func (t *memoryTx) LockProfile(_ context.Context, tenantID, id int64) (Profile, error) {
	p, ok := t.s.profiles[id]
	if !ok || p.TenantID != tenantID {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (t *memoryTx) ProfileOverlapExists(_ context.Context, tenantID, driverID int64, start time.Time, end *time.Time, excludeID int64) (bool, error) {
	for _, p := range t.s.profiles {
		if p.TenantID != tenantID || p.DriverID != driverID || p.ID == excludeID || !p.IsActive {
			continue
		}
		startsBeforeEnd := end == nil || !p.EffectiveStart.After(*end)
		endsAfterStart := p.EffectiveEnd == nil || !p.EffectiveEnd.Before(start)
		if startsBeforeEnd && endsAfterStart {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertProfile(_ context.Context, p Profile) (Profile, error) {
	p.ID = t.s.id()
	p.CreatedAt = t.repo.now()
	p.UpdatedAt = p.CreatedAt
	t.s.profiles[p.ID] = p
	return p, nil
}

func (t *memoryTx) UpdateProfile(_ context.Context, p Profile) (Profile, error) {
	p.UpdatedAt = t.repo.now()
	t.s.profiles[p.ID] = p
	return p, nil
}

func (t *memoryTx) EntryKeyExists(_ context.Context, key EntryKey, excludeID int64) (bool, error) {
	for _, e := range t.s.entries {
		if e.ID != excludeID && e.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) LockEntry(_ context.Context, tenantID, id int64) (Entry, error) {
	e, ok := t.s.entries[id]
	if !ok || e.TenantID != tenantID {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	if dup, _ := t.EntryKeyExists(ctx, e.Key(), 0); dup {
		return Entry{}, ErrEntryDuplicate
	}
	e.ID = t.s.id()
	e.CreatedAt = t.repo.now()
	e.UpdatedAt = e.CreatedAt
	t.s.entries[e.ID] = e
	return e, nil
}

func (t *memoryTx) UpdateEntry(_ context.Context, e Entry) (Entry, error) {
	e.UpdatedAt = t.repo.now()
	t.s.entries[e.ID] = e
	return e, nil
}

func (t *memoryTx) ListActiveEntries(_ context.Context, tenantID, periodID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range t.s.entries {
		if e.TenantID == tenantID && e.PeriodID == periodID && e.Active() {
			out = append(out, e)
		}
	}
	// Map order is random; BuildItems must impose its own ordering.
	return out, nil
}

func (t *memoryTx) LockRun(_ context.Context, tenantID, id int64) (Run, error) {
	run, ok := t.s.runs[id]
	if !ok || run.TenantID != tenantID {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (t *memoryTx) InsertRunIfAbsent(_ context.Context, r Run) (Run, bool, error) {
	for _, existing := range t.s.runs {
		if existing.Key() == r.Key() {
			return existing, false, nil
		}
	}
	r.ID = t.s.id()
	r.CreatedAt = t.repo.now()
	r.UpdatedAt = r.CreatedAt
	t.s.runs[r.ID] = r
	return r, true, nil
}

func (t *memoryTx) UpdateRunStatus(_ context.Context, r Run) error {
	r.Items = nil
	r.UpdatedAt = t.repo.now()
	t.s.runs[r.ID] = r
	return nil
}

func (t *memoryTx) MarkGenerated(_ context.Context, tenantID, runID int64, generationID uuid.UUID, at time.Time) error {
	run, ok := t.s.runs[runID]
	if !ok || run.TenantID != tenantID {
		return ErrRunNotFound
	}
	run.Status = RunStatusGenerated
	run.GenerationID = &generationID
	run.GeneratedAt = &at
	run.Snapshot = nil
	run.UpdatedAt = t.repo.now()
	t.s.runs[runID] = run
	return nil
}

func (t *memoryTx) DeleteRunItems(_ context.Context, _ int64, runID int64) (int64, error) {
	n := int64(len(t.s.items[runID]))
	delete(t.s.items, runID)
	return n, nil
}

func (t *memoryTx) InsertRunItems(_ context.Context, items []RunItem) error {
	if t.repo.failInsertItems != nil {
		return t.repo.failInsertItems
	}
	for _, item := range items {
		item.ID = t.s.id()
		item.CreatedAt = t.repo.now()
		t.s.items[item.RunID] = append(t.s.items[item.RunID], item)
	}
	return nil
}

func (t *memoryTx) ListRunItems(_ context.Context, tenantID, runID int64) ([]RunItem, error) {
	return listMemoryItems(t.s, tenantID, runID), nil
}

func (t *memoryTx) EnsurePayee(_ context.Context, driver Driver) (Payee, error) {
	d := t.s.drivers[driver.ID]
	if d.PayeeID != nil {
		return t.s.payees[*d.PayeeID], nil
	}
	p := Payee{ID: t.s.id(), TenantID: d.TenantID, Type: PayeeDriver, WorkerType: WorkerEmployeeDriver, DisplayName: d.DisplayName(), IsActive: true}
	t.s.payees[p.ID] = p
	d.PayeeID = &p.ID
	t.s.drivers[d.ID] = d
	return p, nil
}

var (
	_ Repository   = (*memoryRepo)(nil)
	_ TxRepository = (*memoryTx)(nil)
)

// summarizeEntries mirrors the SQL rollup in PostgresRepository.SummarizePeriod.
func summarizeEntries(entries []Entry) []DriverSummary {
	byDriver := make(map[int64]*DriverSummary)
	for _, e := range entries {
		if !e.Active() {
			continue
		}
		sum, ok := byDriver[e.DriverID]
		if !ok {
			sum = &DriverSummary{DriverID: e.DriverID}
			byDriver[e.DriverID] = sum
		}
		amount := money.Round(e.Amount)
		switch e.Type {
		case EntryTypeMiles:
			if e.Quantity.Valid {
				sum.Miles = sum.Miles.Add(e.Quantity.Decimal)
			}
			sum.Earnings = sum.Earnings.Add(amount)
		case EntryTypeHours:
			if e.Quantity.Valid {
				sum.Hours = sum.Hours.Add(e.Quantity.Decimal)
			}
			sum.Earnings = sum.Earnings.Add(amount)
		case EntryTypeGross, EntryTypeAdjustment:
			sum.Earnings = sum.Earnings.Add(amount)
		case EntryTypeDeduction:
			sum.Deductions = sum.Deductions.Add(amount.Abs())
		}
	}
	out := make([]DriverSummary, 0, len(byDriver))
	for _, sum := range byDriver {
		sum.Earnings = money.Round(sum.Earnings)
		sum.Deductions = money.Round(sum.Deductions)
		sum.Net = sum.Earnings.Sub(sum.Deductions)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}
