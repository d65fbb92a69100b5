package payrollhttp

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetledger/fleetledger/internal/money"
	"github.com/fleetledger/fleetledger/internal/payroll"
)

type createPeriodRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type updatePeriodRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type createEntryRequest struct {
	PayPeriodID   int64            `json:"pay_period_id" validate:"required,gt=0"`
	DriverID      int64            `json:"driver_id" validate:"required,gt=0"`
	PayProfileID  *int64           `json:"pay_profile_id" validate:"omitempty,gt=0"`
	WorkDate      string           `json:"work_date" validate:"required,datetime=2006-01-02"`
	EntryType     string           `json:"entry_type" validate:"required,oneof=MILES HOURS GROSS ADJUSTMENT DEDUCTION"`
	ReferenceCode string           `json:"reference_code" validate:"max=100"`
	Quantity      *decimal.Decimal `json:"quantity"`
	RateAmount    *decimal.Decimal `json:"rate_amount"`
	Amount        *decimal.Decimal `json:"amount"`
	Notes         string           `json:"notes" validate:"max=2000"`
}

type updateEntryRequest struct {
	Quantity      *decimal.Decimal `json:"quantity"`
	RateAmount    *decimal.Decimal `json:"rate_amount"`
	Amount        *decimal.Decimal `json:"amount"`
	ReferenceCode *string          `json:"reference_code" validate:"omitempty,max=100"`
	Notes         *string          `json:"notes" validate:"omitempty,max=2000"`
}

type voidEntryRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type createProfileRequest struct {
	DriverID              int64            `json:"driver_id" validate:"required,gt=0"`
	PayType               string           `json:"pay_type" validate:"required,oneof=PER_MILE HOURLY PERCENTAGE SALARY"`
	RateAmount            *decimal.Decimal `json:"rate_amount"`
	RateUnit              string           `json:"rate_unit" validate:"max=20"`
	PercentageBasisPoints *int             `json:"percentage_basis_points"`
	Currency              string           `json:"currency" validate:"omitempty,len=3"`
	Notes                 string           `json:"notes" validate:"max=2000"`
	EffectiveStart        string           `json:"effective_start" validate:"required,datetime=2006-01-02"`
	EffectiveEnd          *string          `json:"effective_end" validate:"omitempty,datetime=2006-01-02"`
	IsActive              *bool            `json:"is_active"`
}

type updateProfileRequest struct {
	RateAmount            *decimal.Decimal `json:"rate_amount"`
	RateUnit              *string          `json:"rate_unit" validate:"omitempty,max=20"`
	PercentageBasisPoints *int             `json:"percentage_basis_points"`
	Currency              *string          `json:"currency" validate:"omitempty,len=3"`
	Notes                 *string          `json:"notes" validate:"omitempty,max=2000"`
	EffectiveStart        *string          `json:"effective_start" validate:"omitempty,datetime=2006-01-02"`
	EffectiveEnd          *string          `json:"effective_end" validate:"omitempty,datetime=2006-01-02"`
	IsActive              *bool            `json:"is_active"`
}

type createRunRequest struct {
	PayPeriodID     int64   `json:"pay_period_id" validate:"required,gt=0"`
	PayDocumentType string  `json:"pay_document_type" validate:"omitempty,oneof=PAYSTUB SETTLEMENT_STATEMENT CONTRACTOR_PAY_STATEMENT CARRIER_PAYOUT_STATEMENT"`
	WorkerType      string  `json:"worker_type" validate:"omitempty,oneof=EMPLOYEE_DRIVER CONTRACTOR_COMPANY_DRIVER OWNER_OPERATOR_LEASED_ON THIRD_PARTY_CARRIER"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	PayDate         *string `json:"pay_date" validate:"omitempty,datetime=2006-01-02"`
}

type periodResponse struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Status    string     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type entryResponse struct {
	ID                int64      `json:"id"`
	PayPeriodID       int64      `json:"pay_period_id"`
	DriverID          int64      `json:"driver_id"`
	PayProfileID      *int64     `json:"pay_profile_id,omitempty"`
	WorkDate          string     `json:"work_date"`
	EntryType         string     `json:"entry_type"`
	ReferenceCode     string     `json:"reference_code"`
	Quantity          *string    `json:"quantity"`
	RateAmount        *string    `json:"rate_amount"`
	Amount            string     `json:"amount"`
	Notes             string     `json:"notes,omitempty"`
	IsManual          bool       `json:"is_manual"`
	Status            string     `json:"status"`
	DeactivatedAt     *time.Time `json:"deactivated_at,omitempty"`
	DeactivatedReason string     `json:"deactivated_reason,omitempty"`
	CreatedBy         string     `json:"created_by,omitempty"`
	UpdatedBy         string     `json:"updated_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type profileResponse struct {
	ID                    int64   `json:"id"`
	DriverID              int64   `json:"driver_id"`
	PayType               string  `json:"pay_type"`
	RateAmount            *string `json:"rate_amount"`
	RateUnit              string  `json:"rate_unit,omitempty"`
	PercentageBasisPoints *int    `json:"percentage_basis_points,omitempty"`
	Currency              string  `json:"currency"`
	Notes                 string  `json:"notes,omitempty"`
	EffectiveStart        string  `json:"effective_start"`
	EffectiveEnd          *string `json:"effective_end,omitempty"`
	IsActive              bool    `json:"is_active"`
}

type runItemResponse struct {
	ID           int64                `json:"id"`
	PayeeID      int64                `json:"payee_id"`
	SourceType   string               `json:"source_type"`
	Description  string               `json:"description"`
	Quantity     *string              `json:"quantity"`
	UnitRate     *string              `json:"unit_rate"`
	AmountSigned string               `json:"amount_signed"`
	Currency     string               `json:"currency"`
	Metadata     payroll.ItemMetadata `json:"metadata_json"`
}

type runResponse struct {
	ID              int64             `json:"id"`
	PayPeriodID     int64             `json:"pay_period_id"`
	PayDocumentType string            `json:"pay_document_type"`
	WorkerType      string            `json:"worker_type_snapshot"`
	Currency        string            `json:"base_currency_snapshot"`
	PayDate         string            `json:"pay_date"`
	Status          string            `json:"status"`
	PayoutStatus    string            `json:"payout_status"`
	Snapshot        *payroll.Snapshot `json:"calculation_snapshot_json,omitempty"`
	GenerationID    *uuid.UUID        `json:"generation_id,omitempty"`
	GeneratedAt     *time.Time        `json:"generated_at,omitempty"`
	FinalizedAt     *time.Time        `json:"finalized_at,omitempty"`
	FinalizedBy     *int64            `json:"finalized_by,omitempty"`
	Items           []runItemResponse `json:"items,omitempty"`
}

type driverSummaryResponse struct {
	DriverID   int64  `json:"driver_id"`
	Miles      string `json:"miles"`
	Hours      string `json:"hours"`
	Earnings   string `json:"earnings"`
	Deductions string `json:"deductions"`
	Net        string `json:"net"`
}

type summaryResponse struct {
	PayPeriodID int64                   `json:"pay_period_id"`
	Status      string                  `json:"status"`
	Totals      []driverSummaryResponse `json:"totals"`
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(payroll.DateLayout, raw)
	if err != nil {
		return time.Time{}, payroll.ErrInvalidInput.With("invalid date " + raw)
	}
	return t, nil
}

func parseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func formatNull(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(payroll.DateLayout)
	return &s
}

func toPeriodResponse(p payroll.Period) periodResponse {
	return periodResponse{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate.Format(payroll.DateLayout),
		EndDate:   p.EndDate.Format(payroll.DateLayout),
		Status:    string(p.Status),
		ClosedAt:  p.ClosedAt,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toEntryResponse(e payroll.Entry) entryResponse {
	return entryResponse{
		ID:                e.ID,
		PayPeriodID:       e.PeriodID,
		DriverID:          e.DriverID,
		PayProfileID:      e.ProfileID,
		WorkDate:          e.WorkDate.Format(payroll.DateLayout),
		EntryType:         string(e.Type),
		ReferenceCode:     e.ReferenceCode,
		Quantity:          formatNull(e.Quantity),
		RateAmount:        formatNull(e.Rate),
		Amount:            money.Format(e.Amount),
		Notes:             e.Notes,
		IsManual:          e.IsManual,
		Status:            string(e.Status),
		DeactivatedAt:     e.DeactivatedAt,
		DeactivatedReason: e.DeactivatedReason,
		CreatedBy:         e.CreatedBy,
		UpdatedBy:         e.UpdatedBy,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toProfileResponse(p payroll.Profile) profileResponse {
	return profileResponse{
		ID:                    p.ID,
		DriverID:              p.DriverID,
		PayType:               string(p.PayType),
		RateAmount:            formatNull(p.Rate),
		RateUnit:              p.RateUnit,
		PercentageBasisPoints: p.PercentageBasisPoints,
		Currency:              p.Currency,
		Notes:                 p.Notes,
		EffectiveStart:        p.EffectiveStart.Format(payroll.DateLayout),
		EffectiveEnd:          formatDatePtr(p.EffectiveEnd),
		IsActive:              p.IsActive,
	}
}

func toRunResponse(r payroll.Run) runResponse {
	resp := runResponse{
		ID:              r.ID,
		PayPeriodID:     r.PeriodID,
		PayDocumentType: string(r.DocumentType),
		WorkerType:      string(r.WorkerType),
		Currency:        r.Currency,
		PayDate:         r.PayDate.Format(payroll.DateLayout),
		Status:          string(r.Status),
		PayoutStatus:    string(r.PayoutStatus),
		Snapshot:        r.Snapshot,
		GenerationID:    r.GenerationID,
		GeneratedAt:     r.GeneratedAt,
		FinalizedAt:     r.FinalizedAt,
		FinalizedBy:     r.FinalizedBy,
	}
	for _, item := range r.Items {
		resp.Items = append(resp.Items, runItemResponse{
			ID:           item.ID,
			PayeeID:      item.PayeeID,
			SourceType:   string(item.SourceType),
			Description:  item.Description,
			Quantity:     formatNull(item.Quantity),
			UnitRate:     formatNull(item.UnitRate),
			AmountSigned: money.Format(item.AmountSigned),
			Currency:     item.Currency,
			Metadata:     item.Metadata,
		})
	}
	return resp
}

func toSummaryResponse(s payroll.PeriodSummary) summaryResponse {
	resp := summaryResponse{PayPeriodID: s.PeriodID, Status: string(s.Status), Totals: make([]driverSummaryResponse, 0, len(s.Totals))}
	for _, t := range s.Totals {
		resp.Totals = append(resp.Totals, driverSummaryResponse{
			DriverID:   t.DriverID,
			Miles:      t.Miles.String(),
			Hours:      t.Hours.String(),
			Earnings:   money.Format(t.Earnings),
			Deductions: money.Format(t.Deductions),
			Net:        money.Format(t.Net),
		})
	}
	return resp
}
