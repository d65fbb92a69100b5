package payroll

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/fleetledger/fleetledger/internal/money"
)

// CreateProfile registers a compensation basis for a driver.
func (s *Service) CreateProfile(ctx context.Context, in CreateProfileInput) (Profile, error) {
	start := s.now()
	if err := in.Validate(); err != nil {
		return Profile{}, err
	}
	code, err := s.currencyOrDefault(in.Currency)
	if err != nil {
		return Profile{}, err
	}
	var profile Profile
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetDriver(ctx, in.TenantID, in.DriverID); err != nil {
			return err
		}
		effStart := truncateDay(in.EffectiveStart)
		effEnd := truncatePtr(in.EffectiveEnd)
		if in.IsActive {
			overlap, err := tx.ProfileOverlapExists(ctx, in.TenantID, in.DriverID, effStart, effEnd, 0)
			if err != nil {
				return err
			}
			if overlap {
				return ErrProfileOverlap
			}
		}
		profile, err = tx.InsertProfile(ctx, Profile{
			TenantID:              in.TenantID,
			DriverID:              in.DriverID,
			PayType:               in.PayType,
			Rate:                  money.RoundNull(in.Rate),
			RateUnit:              strings.TrimSpace(in.RateUnit),
			PercentageBasisPoints: in.PercentageBasisPoints,
			Currency:              code,
			Notes:                 strings.TrimSpace(in.Notes),
			EffectiveStart:        effStart,
			EffectiveEnd:          effEnd,
			IsActive:              in.IsActive,
		})
		return err
	})
	if err = s.finish("payroll.create_profile", start, err, slog.Int64("tenant_id", in.TenantID), slog.Int64("driver_id", in.DriverID)); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateProfile patches a pay profile and re-checks the active overlap rule.
func (s *Service) UpdateProfile(ctx context.Context, in UpdateProfileInput) (Profile, error) {
	start := s.now()
	if in.TenantID == 0 || in.ID == 0 {
		return Profile{}, ErrInvalidInput.With("tenant and profile id required")
	}
	var profile Profile
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockProfile(ctx, in.TenantID, in.ID)
		if err != nil {
			return err
		}
		if in.Rate != nil {
			p.Rate.Decimal, p.Rate.Valid = money.RoundRate(*in.Rate), true
		}
		if in.RateUnit != nil {
			p.RateUnit = strings.TrimSpace(*in.RateUnit)
		}
		if in.PercentageBasisPoints != nil {
			bps := *in.PercentageBasisPoints
			p.PercentageBasisPoints = &bps
		}
		if in.Currency != nil {
			if p.Currency, err = s.currencyOrDefault(*in.Currency); err != nil {
				return err
			}
		}
		if in.Notes != nil {
			p.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.EffectiveStart != nil {
			p.EffectiveStart = truncateDay(*in.EffectiveStart)
		}
		if in.EffectiveEnd != nil {
			p.EffectiveEnd = truncatePtr(in.EffectiveEnd)
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		if p.EffectiveEnd != nil && p.EffectiveEnd.Before(p.EffectiveStart) {
			return ErrInvalidDateRange.With("effective end cannot be before start")
		}
		if err := validateProfileRates(p.PayType, p.Rate, p.PercentageBasisPoints); err != nil {
			return err
		}
		if p.IsActive {
			overlap, err := tx.ProfileOverlapExists(ctx, in.TenantID, p.DriverID, p.EffectiveStart, p.EffectiveEnd, p.ID)
			if err != nil {
				return err
			}
			if overlap {
				return ErrProfileOverlap
			}
		}
		profile, err = tx.UpdateProfile(ctx, p)
		return err
	})
	if err = s.finish("payroll.update_profile", start, err, slog.Int64("tenant_id", in.TenantID), slog.Int64("profile_id", in.ID)); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// DeactivateProfile marks a profile inactive. Already inactive profiles are returned as-is.
func (s *Service) DeactivateProfile(ctx context.Context, tenantID, id int64) (Profile, error) {
	start := s.now()
	var profile Profile
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockProfile(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !p.IsActive {
			profile = p
			return nil
		}
		p.IsActive = false
		profile, err = tx.UpdateProfile(ctx, p)
		return err
	})
	if err = s.finish("payroll.deactivate_profile", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("profile_id", id)); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// GetProfile returns one pay profile.
func (s *Service) GetProfile(ctx context.Context, tenantID, id int64) (Profile, error) {
	p, err := s.repo.GetProfile(ctx, tenantID, id)
	if err != nil {
		return Profile{}, s.finish("payroll.get_profile", time.Now(), err, slog.Int64("tenant_id", tenantID))
	}
	return p, nil
}

// ListProfiles returns profiles ordered by driver then effective start descending.
func (s *Service) ListProfiles(ctx context.Context, filter ListProfilesFilter) ([]Profile, error) {
	profiles, err := s.repo.ListProfiles(ctx, filter)
	if err != nil {
		return nil, s.finish("payroll.list_profiles", time.Now(), err, slog.Int64("tenant_id", filter.TenantID))
	}
	return profiles, nil
}

// currencyOrDefault upper-cases and validates an ISO 4217 code, falling back to
// the configured currency when code is blank.
func (s *Service) currencyOrDefault(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = s.cfg.Currency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", ErrInvalidCurrency.With("unknown currency " + code)
	}
	return unit.String(), nil
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := truncateDay(*t)
	return &d
}
