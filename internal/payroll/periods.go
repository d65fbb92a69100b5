package payroll

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// CreatePeriod inserts a new OPEN period after validating overlap.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	start := s.now()
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlap, err := tx.PeriodOverlapExists(ctx, in.TenantID, in.StartDate, in.EndDate, 0)
		if err != nil {
			return err
		}
		if overlap {
			return ErrPeriodOverlap
		}
		period, err = tx.InsertPeriod(ctx, Period{
			TenantID:  in.TenantID,
			Name:      strings.TrimSpace(in.Name),
			StartDate: truncateDay(in.StartDate),
			EndDate:   truncateDay(in.EndDate),
			Status:    PeriodStatusOpen,
		})
		return err
	})
	if err = s.finish("payroll.create_period", start, err, slog.Int64("tenant_id", in.TenantID)); err != nil {
		return Period{}, err
	}
	return period, nil
}

// OpenPeriod reopens a CLOSED period. The period must not overlap another OPEN
// period and must not carry a FINALIZED run.
func (s *Service) OpenPeriod(ctx context.Context, tenantID, id int64) (Period, error) {
	start := s.now()
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockPeriod(ctx, tenantID, id, LockUpdate)
		if err != nil {
			return err
		}
		if p.Status != PeriodStatusClosed {
			return ErrPeriodNotClosed
		}
		finalized, err := tx.PeriodHasFinalizedRun(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if finalized {
			return ErrPeriodFinalizedRuns
		}
		overlap, err := tx.PeriodOverlapExists(ctx, tenantID, p.StartDate, p.EndDate, p.ID)
		if err != nil {
			return err
		}
		if overlap {
			return ErrPeriodOverlap
		}
		p.Status = PeriodStatusOpen
		p.ClosedAt = nil
		period, err = tx.UpdatePeriod(ctx, p)
		return err
	})
	if err = s.finish("payroll.open_period", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("period_id", id)); err != nil {
		return Period{}, err
	}
	s.invalidate(ctx, tenantID)
	return period, nil
}

// ClosePeriod freezes the period's entries. Closing an already CLOSED period is a
// conflict and leaves closed_at untouched.
func (s *Service) ClosePeriod(ctx context.Context, tenantID, id int64) (Period, error) {
	start := s.now()
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockPeriod(ctx, tenantID, id, LockUpdate)
		if err != nil {
			return err
		}
		if p.Status == PeriodStatusClosed {
			return ErrPeriodClosed
		}
		closedAt := s.now().UTC()
		p.Status = PeriodStatusClosed
		p.ClosedAt = &closedAt
		period, err = tx.UpdatePeriod(ctx, p)
		return err
	})
	if err = s.finish("payroll.close_period", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("period_id", id)); err != nil {
		return Period{}, err
	}
	s.invalidate(ctx, tenantID)
	if s.notifier != nil {
		if err := s.notifier.PeriodClosed(ctx, period); err != nil {
			s.logger.Warn("notify period closed", slog.Int64("tenant_id", tenantID), slog.Int64("period_id", id), slog.Any("error", err))
		}
	}
	return period, nil
}

// UpdatePeriod renames or re-dates an OPEN period.
func (s *Service) UpdatePeriod(ctx context.Context, in UpdatePeriodInput) (Period, error) {
	start := s.now()
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockPeriod(ctx, in.TenantID, in.ID, LockUpdate)
		if err != nil {
			return err
		}
		if p.Status == PeriodStatusClosed {
			return ErrPeriodClosed.With("closed pay periods cannot be edited")
		}
		newStart, newEnd := p.StartDate, p.EndDate
		if in.StartDate != nil {
			newStart = truncateDay(*in.StartDate)
		}
		if in.EndDate != nil {
			newEnd = truncateDay(*in.EndDate)
		}
		if newStart.After(newEnd) {
			return ErrInvalidDateRange
		}
		if !newStart.Equal(p.StartDate) || !newEnd.Equal(p.EndDate) {
			overlap, err := tx.PeriodOverlapExists(ctx, in.TenantID, newStart, newEnd, p.ID)
			if err != nil {
				return err
			}
			if overlap {
				return ErrPeriodOverlap
			}
			stranded, err := tx.CountEntriesOutside(ctx, in.TenantID, p.ID, newStart, newEnd)
			if err != nil {
				return err
			}
			if stranded > 0 {
				return ErrPeriodEntriesOutside
			}
		}
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		p.StartDate, p.EndDate = newStart, newEnd
		period, err = tx.UpdatePeriod(ctx, p)
		return err
	})
	if err = s.finish("payroll.update_period", start, err, slog.Int64("tenant_id", in.TenantID), slog.Int64("period_id", in.ID)); err != nil {
		return Period{}, err
	}
	s.invalidate(ctx, in.TenantID)
	return period, nil
}

// GetPeriod returns a single pay period.
func (s *Service) GetPeriod(ctx context.Context, tenantID, id int64) (Period, error) {
	p, err := s.repo.GetPeriod(ctx, tenantID, id)
	if err != nil {
		return Period{}, s.finish("payroll.get_period", time.Now(), err, slog.Int64("tenant_id", tenantID))
	}
	return p, nil
}

// ListPeriods returns the tenant's periods, newest first, optionally filtered by status.
func (s *Service) ListPeriods(ctx context.Context, tenantID int64, status *PeriodStatus) ([]Period, error) {
	if status != nil && *status != PeriodStatusOpen && *status != PeriodStatusClosed {
		return nil, ErrInvalidInput.With("invalid pay period status filter")
	}
	periods, err := s.repo.ListPeriods(ctx, tenantID, status)
	if err != nil {
		return nil, s.finish("payroll.list_periods", time.Now(), err, slog.Int64("tenant_id", tenantID))
	}
	return periods, nil
}
