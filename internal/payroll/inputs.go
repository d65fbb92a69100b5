package payroll

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreatePeriodInput captures validation rules for new pay periods.
type CreatePeriodInput struct {
	TenantID  int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Validate ensures the create period input is coherent.
func (in CreatePeriodInput) Validate() error {
	if in.TenantID == 0 {
		return ErrInvalidInput.With("tenant id required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return ErrInvalidInput.With("name required")
	}
	if len(in.Name) > 100 {
		return ErrInvalidInput.With("name must be at most 100 characters")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return ErrInvalidInput.With("start and end date required")
	}
	if truncateDay(in.StartDate).After(truncateDay(in.EndDate)) {
		return ErrInvalidDateRange
	}
	return nil
}

// UpdatePeriodInput patches an OPEN period. Nil fields are left unchanged.
type UpdatePeriodInput struct {
	TenantID  int64
	ID        int64
	Name      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Validate checks the patch in isolation.
func (in UpdatePeriodInput) Validate() error {
	if in.TenantID == 0 || in.ID == 0 {
		return ErrInvalidInput.With("tenant and period id required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return ErrInvalidInput.With("name cannot be blank")
	}
	if in.StartDate != nil && in.EndDate != nil && truncateDay(*in.StartDate).After(truncateDay(*in.EndDate)) {
		return ErrInvalidDateRange
	}
	return nil
}

// CreateEntryInput describes a manual pay fact.
type CreateEntryInput struct {
	TenantID      int64
	PeriodID      int64
	DriverID      int64
	ProfileID     *int64
	WorkDate      time.Time
	Type          EntryType
	ReferenceCode string
	Quantity      decimal.NullDecimal
	Rate          decimal.NullDecimal
	Amount        decimal.NullDecimal
	Notes         string
	Actor         string
}

// Validate performs the checks that need no stored state.
func (in CreateEntryInput) Validate() error {
	if in.TenantID == 0 || in.PeriodID == 0 || in.DriverID == 0 {
		return ErrInvalidInput.With("tenant, pay period and driver are required")
	}
	if in.WorkDate.IsZero() {
		return ErrInvalidInput.With("work date required")
	}
	if !in.Type.Valid() {
		return ErrInvalidEntryType
	}
	if len(in.ReferenceCode) > 100 {
		return ErrInvalidInput.With("reference code must be at most 100 characters")
	}
	if err := positiveFactor("quantity", in.Quantity); err != nil {
		return err
	}
	return positiveFactor("rate_amount", in.Rate)
}

// UpdateEntryInput patches an entry. Supplying Amount pins the amount; supplying
// Quantity or Rate without Amount re-derives it from the merged factors.
type UpdateEntryInput struct {
	TenantID      int64
	ID            int64
	Quantity      *decimal.Decimal
	Rate          *decimal.Decimal
	Amount        *decimal.Decimal
	ReferenceCode *string
	Notes         *string
	Actor         string
}

// Validate checks the patch in isolation.
func (in UpdateEntryInput) Validate() error {
	if in.TenantID == 0 || in.ID == 0 {
		return ErrInvalidInput.With("tenant and entry id required")
	}
	if in.Quantity == nil && in.Rate == nil && in.Amount == nil && in.ReferenceCode == nil && in.Notes == nil {
		return ErrInvalidInput.With("nothing to update")
	}
	if in.ReferenceCode != nil && len(*in.ReferenceCode) > 100 {
		return ErrInvalidInput.With("reference code must be at most 100 characters")
	}
	if in.Quantity != nil {
		if err := positiveFactor("quantity", decimal.NewNullDecimal(*in.Quantity)); err != nil {
			return err
		}
	}
	if in.Rate != nil {
		if err := positiveFactor("rate_amount", decimal.NewNullDecimal(*in.Rate)); err != nil {
			return err
		}
	}
	return nil
}

// ListEntriesFilter narrows ListEntries.
type ListEntriesFilter struct {
	TenantID        int64
	PeriodID        int64
	DriverID        *int64
	IncludeInactive bool
}

// CreateProfileInput describes a new pay profile.
type CreateProfileInput struct {
	TenantID              int64
	DriverID              int64
	PayType               PayType
	Rate                  decimal.NullDecimal
	RateUnit              string
	PercentageBasisPoints *int
	Currency              string
	Notes                 string
	EffectiveStart        time.Time
	EffectiveEnd          *time.Time
	IsActive              bool
}

// Validate enforces pay type specific requirements.
func (in CreateProfileInput) Validate() error {
	if in.TenantID == 0 || in.DriverID == 0 {
		return ErrInvalidInput.With("tenant and driver are required")
	}
	if !in.PayType.Valid() {
		return ErrInvalidPayType
	}
	if in.EffectiveStart.IsZero() {
		return ErrInvalidInput.With("effective start required")
	}
	if in.EffectiveEnd != nil && truncateDay(*in.EffectiveEnd).Before(truncateDay(in.EffectiveStart)) {
		return ErrInvalidDateRange.With("effective end cannot be before start")
	}
	return validateProfileRates(in.PayType, in.Rate, in.PercentageBasisPoints)
}

// UpdateProfileInput patches a pay profile.
type UpdateProfileInput struct {
	TenantID              int64
	ID                    int64
	Rate                  *decimal.Decimal
	RateUnit              *string
	PercentageBasisPoints *int
	Currency              *string
	Notes                 *string
	EffectiveStart        *time.Time
	EffectiveEnd          *time.Time
	IsActive              *bool
}

// ListProfilesFilter narrows ListProfiles.
type ListProfilesFilter struct {
	TenantID        int64
	DriverID        *int64
	IncludeInactive bool
}

// CreateRunInput describes a pay run request. Zero values take the defaults.
type CreateRunInput struct {
	TenantID     int64
	PeriodID     int64
	DocumentType DocumentType
	WorkerType   WorkerType
	Currency     string
	PayDate      *time.Time
}

// Validate checks identity and enum fields after defaults are applied.
func (in CreateRunInput) Validate() error {
	if in.TenantID == 0 || in.PeriodID == 0 {
		return ErrInvalidInput.With("tenant and pay period are required")
	}
	if !in.DocumentType.Valid() {
		return ErrInvalidDocumentType
	}
	if !in.WorkerType.Valid() {
		return ErrInvalidWorkerType
	}
	return nil
}

// ListRunsFilter narrows ListRuns.
type ListRunsFilter struct {
	TenantID int64
	PeriodID *int64
}

func positiveFactor(field string, v decimal.NullDecimal) error {
	if v.Valid && !v.Decimal.IsPositive() {
		return ErrInvalidInput.With(field + " must be greater than zero")
	}
	return nil
}

func validateProfileRates(payType PayType, rate decimal.NullDecimal, bps *int) error {
	if rate.Valid && !rate.Decimal.IsPositive() {
		return ErrInvalidInput.With("rate_amount must be greater than zero")
	}
	if bps != nil && (*bps < 0 || *bps > 10000) {
		return ErrInvalidInput.With("percentage_basis_points must be between 0 and 10000")
	}
	switch payType {
	case PayTypePerMile, PayTypeHourly, PayTypeSalary:
		if !rate.Valid {
			return ErrInvalidInput.With("rate_amount is required for " + string(payType))
		}
	case PayTypePercentage:
		if bps == nil {
			return ErrInvalidInput.With("percentage_basis_points is required for PERCENTAGE")
		}
	}
	return nil
}
