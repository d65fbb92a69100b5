package payroll

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetledger/fleetledger/internal/money"
)

// CreateEntry records a manual pay fact inside an OPEN period.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (Entry, error) {
	start := s.now()
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	amount, err := s.resolveAmount(in.Type, in.Amount, in.Quantity, in.Rate)
	if err != nil {
		return Entry{}, err
	}
	quantity, rate := money.RoundNull(in.Quantity), money.RoundNull(in.Rate)
	workDate := truncateDay(in.WorkDate)

	var entry Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.LockPeriod(ctx, in.TenantID, in.PeriodID, LockShare)
		if err != nil {
			return err
		}
		if period.Status == PeriodStatusClosed {
			return ErrPeriodClosed
		}
		if !period.Contains(workDate) {
			return ErrWorkDateOutside
		}
		locked, err := tx.DateInClosedPeriod(ctx, in.TenantID, workDate)
		if err != nil {
			return err
		}
		if locked {
			return ErrWorkDateLocked
		}
		if _, err := tx.GetDriver(ctx, in.TenantID, in.DriverID); err != nil {
			return err
		}
		if in.ProfileID != nil {
			profile, err := tx.LockProfile(ctx, in.TenantID, *in.ProfileID)
			if err != nil {
				return err
			}
			if profile.DriverID != in.DriverID {
				return ErrProfileMismatch
			}
			if !profile.IsActive {
				return ErrProfileInactive
			}
		}
		candidate := Entry{
			TenantID:      in.TenantID,
			PeriodID:      in.PeriodID,
			DriverID:      in.DriverID,
			ProfileID:     in.ProfileID,
			WorkDate:      workDate,
			Type:          in.Type,
			ReferenceCode: strings.TrimSpace(in.ReferenceCode),
			Quantity:      quantity,
			Rate:          rate,
			Amount:        amount,
			Notes:         strings.TrimSpace(in.Notes),
			IsManual:      true,
			Status:        EntryStatusActive,
			CreatedBy:     in.Actor,
			UpdatedBy:     in.Actor,
		}
		exists, err := tx.EntryKeyExists(ctx, candidate.Key(), 0)
		if err != nil {
			return err
		}
		if exists {
			return ErrEntryDuplicate
		}
		entry, err = tx.InsertEntry(ctx, candidate)
		return err
	})
	if err = s.finish("payroll.create_entry", start, err, slog.Int64("tenant_id", in.TenantID), slog.Int64("period_id", in.PeriodID)); err != nil {
		return Entry{}, err
	}
	s.invalidate(ctx, in.TenantID)
	return entry, nil
}

// UpdateEntry applies a patch to an ACTIVE entry of an OPEN period.
func (s *Service) UpdateEntry(ctx context.Context, in UpdateEntryInput) (Entry, error) {
	start := s.now()
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockEntry(ctx, in.TenantID, in.ID)
		if err != nil {
			return err
		}
		period, err := tx.LockPeriod(ctx, in.TenantID, current.PeriodID, LockShare)
		if err != nil {
			return err
		}
		if period.Status == PeriodStatusClosed {
			return ErrPeriodClosed
		}
		if !current.Active() {
			return ErrEntryVoid
		}

		patched := current
		quantity, rate := current.Quantity, current.Rate
		if in.Quantity != nil {
			quantity = decimal.NewNullDecimal(*in.Quantity)
			patched.Quantity = decimal.NewNullDecimal(money.RoundRate(*in.Quantity))
		}
		if in.Rate != nil {
			rate = decimal.NewNullDecimal(*in.Rate)
			patched.Rate = decimal.NewNullDecimal(money.RoundRate(*in.Rate))
		}
		if in.ReferenceCode != nil {
			patched.ReferenceCode = strings.TrimSpace(*in.ReferenceCode)
		}
		if in.Notes != nil {
			patched.Notes = strings.TrimSpace(*in.Notes)
		}
		switch {
		case in.Amount != nil:
			patched.Amount, err = s.resolveAmount(patched.Type, decimal.NewNullDecimal(*in.Amount), quantity, rate)
		case in.Quantity != nil || in.Rate != nil:
			patched.Amount, err = s.resolveAmount(patched.Type, decimal.NullDecimal{}, quantity, rate)
		}
		if err != nil {
			return err
		}

		if patched.Key() != current.Key() {
			exists, err := tx.EntryKeyExists(ctx, patched.Key(), current.ID)
			if err != nil {
				return err
			}
			if exists {
				return ErrEntryDuplicate
			}
		}
		patched.UpdatedBy = in.Actor
		entry, err = tx.UpdateEntry(ctx, patched)
		return err
	})
	if err = s.finish("payroll.update_entry", start, err, slog.Int64("tenant_id", in.TenantID), slog.Int64("entry_id", in.ID)); err != nil {
		return Entry{}, err
	}
	s.invalidate(ctx, in.TenantID)
	return entry, nil
}

// VoidEntry deactivates an entry. Voiding a VOID entry returns it unchanged.
func (s *Service) VoidEntry(ctx context.Context, tenantID, id int64, reason, actor string) (Entry, error) {
	start := s.now()
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockEntry(ctx, tenantID, id)
		if err != nil {
			return err
		}
		period, err := tx.LockPeriod(ctx, tenantID, current.PeriodID, LockShare)
		if err != nil {
			return err
		}
		if period.Status == PeriodStatusClosed {
			return ErrPeriodClosed
		}
		if !current.Active() {
			entry = current
			return nil
		}
		at := s.now().UTC()
		current.Status = EntryStatusVoid
		current.DeactivatedAt = &at
		current.DeactivatedReason = strings.TrimSpace(reason)
		current.UpdatedBy = actor
		entry, err = tx.UpdateEntry(ctx, current)
		return err
	})
	if err = s.finish("payroll.void_entry", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("entry_id", id)); err != nil {
		return Entry{}, err
	}
	s.invalidate(ctx, tenantID)
	return entry, nil
}

// GetEntry returns one entry regardless of status.
func (s *Service) GetEntry(ctx context.Context, tenantID, id int64) (Entry, error) {
	e, err := s.repo.GetEntry(ctx, tenantID, id)
	if err != nil {
		return Entry{}, s.finish("payroll.get_entry", time.Now(), err, slog.Int64("tenant_id", tenantID))
	}
	return e, nil
}

// ListEntries returns a period's entries ordered by id descending.
func (s *Service) ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error) {
	if filter.TenantID == 0 || filter.PeriodID == 0 {
		return nil, ErrInvalidInput.With("pay_period_id is required")
	}
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, s.finish("payroll.list_entries", time.Now(), err, slog.Int64("tenant_id", filter.TenantID))
	}
	return entries, nil
}

// resolveAmount derives the effective amount and applies the zero, sign and
// bound rules to the rounded value.
func (s *Service) resolveAmount(t EntryType, amount, quantity, rate decimal.NullDecimal) (decimal.Decimal, error) {
	effective, err := money.Effective(amount, quantity, rate)
	if err != nil {
		if errors.Is(err, money.ErrAmountRequired) {
			return decimal.Zero, ErrAmountRequired
		}
		return decimal.Zero, ErrInvalidInput.Wrap(err)
	}
	if effective.IsZero() {
		return decimal.Zero, ErrAmountZero
	}
	if t != EntryTypeAdjustment && effective.IsNegative() {
		return decimal.Zero, ErrAmountNegative
	}
	if !money.WithinBound(effective, s.cfg.AmountLimit) {
		return decimal.Zero, ErrAmountOutOfRange
	}
	return effective, nil
}
