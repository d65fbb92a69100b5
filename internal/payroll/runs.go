package payroll

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CreateRun returns the run for (period, document type, worker type), creating it
// in DRAFT when absent. created reports whether this call inserted the row.
func (s *Service) CreateRun(ctx context.Context, in CreateRunInput) (run Run, created bool, err error) {
	start := s.now()
	if in.DocumentType == "" {
		in.DocumentType = DocumentPaystub
	}
	if in.WorkerType == "" {
		in.WorkerType = WorkerEmployeeDriver
	}
	if err := in.Validate(); err != nil {
		return Run{}, false, err
	}
	code, err := s.currencyOrDefault(in.Currency)
	if err != nil {
		return Run{}, false, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := s.lockRunPeriod(ctx, tx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		payDate := period.EndDate
		if in.PayDate != nil {
			payDate = truncateDay(*in.PayDate)
		}
		run, created, err = tx.InsertRunIfAbsent(ctx, Run{
			TenantID:     in.TenantID,
			PeriodID:     in.PeriodID,
			DocumentType: in.DocumentType,
			WorkerType:   in.WorkerType,
			Currency:     code,
			PayDate:      payDate,
			Status:       RunStatusDraft,
			PayoutStatus: PayoutStatusUnpaid,
		})
		return err
	})
	if err = s.finish("payroll.create_run", start, err, slog.Int64("tenant_id", in.TenantID), slog.Int64("period_id", in.PeriodID)); err != nil {
		return Run{}, false, err
	}
	return run, created, nil
}

// GenerateRun rebuilds the run's items from the period's ACTIVE entries. Only
// entries whose payee worker type matches the run are included. It returns the
// number of items written.
func (s *Service) GenerateRun(ctx context.Context, tenantID, runID int64) (int, error) {
	start := s.now()
	var count int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		run, err := tx.LockRun(ctx, tenantID, runID)
		if err != nil {
			return err
		}
		if err := checkRunMutable(run); err != nil {
			return err
		}
		period, err := s.lockRunPeriod(ctx, tx, tenantID, run.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != PeriodStatusClosed {
			return ErrRunPeriodOpen
		}
		if _, err := tx.DeleteRunItems(ctx, tenantID, runID); err != nil {
			return err
		}
		entries, err := tx.ListActiveEntries(ctx, tenantID, period.ID)
		if err != nil {
			return err
		}
		payees, err := s.resolvePayees(ctx, tx, tenantID, run.WorkerType, entries)
		if err != nil {
			return err
		}
		items := BuildItems(run, entries, payees)
		if len(items) > 0 {
			if err := tx.InsertRunItems(ctx, items); err != nil {
				return err
			}
		}
		if err := tx.MarkGenerated(ctx, tenantID, runID, uuid.New(), s.now().UTC()); err != nil {
			return err
		}
		count = len(items)
		return nil
	})
	if err = s.finish("payroll.generate_run", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("run_id", runID)); err != nil {
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.AddRunItems(count)
	}
	return count, nil
}

// FinalizeRun freezes the run totals into its snapshot.
func (s *Service) FinalizeRun(ctx context.Context, tenantID, runID int64, actor *int64) (Run, error) {
	start := s.now()
	var run Run
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		r, err := tx.LockRun(ctx, tenantID, runID)
		if err != nil {
			return err
		}
		if err := checkRunMutable(r); err != nil {
			return err
		}
		period, err := s.lockRunPeriod(ctx, tx, tenantID, r.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != PeriodStatusClosed {
			return ErrRunPeriodOpen
		}
		items, err := tx.ListRunItems(ctx, tenantID, runID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrRunNoItems
		}
		snap := ComputeTotals(items)
		at := s.now().UTC()
		r.Snapshot = &snap
		r.Status = RunStatusFinalized
		r.FinalizedAt = &at
		r.FinalizedBy = actor
		if err := tx.UpdateRunStatus(ctx, r); err != nil {
			return err
		}
		r.Items = items
		run = r
		return nil
	})
	if err = s.finish("payroll.finalize_run", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("run_id", runID)); err != nil {
		return Run{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.RunFinalized(ctx, run); err != nil {
			s.logger.Warn("notify run finalized", slog.Int64("tenant_id", tenantID), slog.Int64("run_id", runID), slog.Any("error", err))
		}
	}
	return run, nil
}

// VoidRun abandons a DRAFT or GENERATED run. Voiding a VOIDED run is a no-op.
func (s *Service) VoidRun(ctx context.Context, tenantID, runID int64) (Run, error) {
	start := s.now()
	var run Run
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		r, err := tx.LockRun(ctx, tenantID, runID)
		if err != nil {
			return err
		}
		switch r.Status {
		case RunStatusVoided:
			run = r
			return nil
		case RunStatusFinalized:
			return ErrRunFinalized
		}
		r.Status = RunStatusVoided
		if err := tx.UpdateRunStatus(ctx, r); err != nil {
			return err
		}
		run = r
		return nil
	})
	if err = s.finish("payroll.void_run", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("run_id", runID)); err != nil {
		return Run{}, err
	}
	return run, nil
}

// GetRun returns the run with its items.
func (s *Service) GetRun(ctx context.Context, tenantID, runID int64) (Run, error) {
	run, err := s.repo.GetRun(ctx, tenantID, runID)
	if err != nil {
		return Run{}, s.finish("payroll.get_run", time.Now(), err, slog.Int64("tenant_id", tenantID), slog.Int64("run_id", runID))
	}
	items, err := s.repo.ListRunItems(ctx, tenantID, runID)
	if err != nil {
		return Run{}, s.finish("payroll.get_run", time.Now(), err, slog.Int64("tenant_id", tenantID), slog.Int64("run_id", runID))
	}
	run.Items = items
	return run, nil
}

// ListRuns returns runs without items, newest first.
func (s *Service) ListRuns(ctx context.Context, filter ListRunsFilter) ([]Run, error) {
	runs, err := s.repo.ListRuns(ctx, filter)
	if err != nil {
		return nil, s.finish("payroll.list_runs", time.Now(), err, slog.Int64("tenant_id", filter.TenantID))
	}
	return runs, nil
}

func checkRunMutable(run Run) error {
	switch run.Status {
	case RunStatusFinalized:
		return ErrRunFinalized
	case RunStatusVoided:
		return ErrRunVoided
	}
	return nil
}

// lockRunPeriod share-locks the run's period, reporting a missing period with
// the run-scoped code.
func (s *Service) lockRunPeriod(ctx context.Context, tx TxRepository, tenantID, periodID int64) (Period, error) {
	period, err := tx.LockPeriod(ctx, tenantID, periodID, LockShare)
	if errors.Is(err, ErrPeriodNotFound) {
		return Period{}, ErrRunPeriodNotFound
	}
	return period, err
}

// resolvePayees returns the payees of the drivers behind entries that are
// engaged as workerType. Drivers without a payee get the directory default,
// so the run being generated never decides a driver's classification.
func (s *Service) resolvePayees(ctx context.Context, tx TxRepository, tenantID int64, workerType WorkerType, entries []Entry) (map[int64]Payee, error) {
	seen := make(map[int64]struct{})
	driverIDs := make([]int64, 0)
	for _, e := range entries {
		if _, ok := seen[e.DriverID]; ok {
			continue
		}
		seen[e.DriverID] = struct{}{}
		driverIDs = append(driverIDs, e.DriverID)
	}
	sort.Slice(driverIDs, func(i, j int) bool { return driverIDs[i] < driverIDs[j] })

	payees := make(map[int64]Payee, len(driverIDs))
	for _, id := range driverIDs {
		driver, err := tx.GetDriver(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		payee, err := tx.EnsurePayee(ctx, driver)
		if err != nil {
			return nil, err
		}
		if payee.WorkerType == workerType {
			payees[id] = payee
		}
	}
	return payees, nil
}
