package payroll

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetledger/fleetledger/internal/money"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// PeriodStatus enumerates pay period lifecycle stages.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

// EntryType classifies a manually entered pay fact.
type EntryType string

const (
	EntryTypeMiles      EntryType = "MILES"
	EntryTypeHours      EntryType = "HOURS"
	EntryTypeGross      EntryType = "GROSS"
	EntryTypeAdjustment EntryType = "ADJUSTMENT"
	EntryTypeDeduction  EntryType = "DEDUCTION"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeMiles, EntryTypeHours, EntryTypeGross, EntryTypeAdjustment, EntryTypeDeduction:
		return true
	}
	return false
}

// EntryStatus is the single source of truth for entry activity.
type EntryStatus string

const (
	EntryStatusActive EntryStatus = "ACTIVE"
	EntryStatusVoid   EntryStatus = "VOID"
)

// RunStatus captures the lifecycle of a pay run.
type RunStatus string

const (
	RunStatusDraft     RunStatus = "DRAFT"
	RunStatusGenerated RunStatus = "GENERATED"
	RunStatusFinalized RunStatus = "FINALIZED"
	RunStatusVoided    RunStatus = "VOIDED"
)

// PayoutStatus is tracked independently of the run lifecycle.
type PayoutStatus string

const (
	PayoutStatusUnpaid  PayoutStatus = "UNPAID"
	PayoutStatusPartial PayoutStatus = "PARTIAL"
	PayoutStatusPaid    PayoutStatus = "PAID"
)

// DocumentType is the kind of pay document a run produces.
type DocumentType string

const (
	DocumentPaystub                DocumentType = "PAYSTUB"
	DocumentSettlementStatement    DocumentType = "SETTLEMENT_STATEMENT"
	DocumentContractorPayStatement DocumentType = "CONTRACTOR_PAY_STATEMENT"
	DocumentCarrierPayoutStatement DocumentType = "CARRIER_PAYOUT_STATEMENT"
)

// Valid reports whether d is a known document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocumentPaystub, DocumentSettlementStatement, DocumentContractorPayStatement, DocumentCarrierPayoutStatement:
		return true
	}
	return false
}

// WorkerType describes how a payee is engaged.
type WorkerType string

const (
	WorkerEmployeeDriver          WorkerType = "EMPLOYEE_DRIVER"
	WorkerContractorCompanyDriver WorkerType = "CONTRACTOR_COMPANY_DRIVER"
	WorkerOwnerOperatorLeasedOn   WorkerType = "OWNER_OPERATOR_LEASED_ON"
	WorkerThirdPartyCarrier       WorkerType = "THIRD_PARTY_CARRIER"
)

// Valid reports whether w is a known worker type.
func (w WorkerType) Valid() bool {
	switch w {
	case WorkerEmployeeDriver, WorkerContractorCompanyDriver, WorkerOwnerOperatorLeasedOn, WorkerThirdPartyCarrier:
		return true
	}
	return false
}

// SourceType classifies pay run items.
type SourceType string

const (
	SourceEarning    SourceType = "EARNING"
	SourceDeduction  SourceType = "DEDUCTION"
	SourceFee        SourceType = "FEE"
	SourceEscrow     SourceType = "ESCROW"
	SourceAdjustment SourceType = "ADJUSTMENT"
	SourceTax        SourceType = "TAX"
)

// PayeeType distinguishes drivers from carriers.
type PayeeType string

const (
	PayeeDriver  PayeeType = "DRIVER"
	PayeeCarrier PayeeType = "CARRIER"
)

// PayType is the compensation basis of a pay profile.
type PayType string

const (
	PayTypePerMile    PayType = "PER_MILE"
	PayTypeHourly     PayType = "HOURLY"
	PayTypePercentage PayType = "PERCENTAGE"
	PayTypeSalary     PayType = "SALARY"
)

// Valid reports whether p is a known pay type.
func (p PayType) Valid() bool {
	switch p {
	case PayTypePerMile, PayTypeHourly, PayTypePercentage, PayTypeSalary:
		return true
	}
	return false
}

// Period is a tenant-scoped billing window gating entry mutation.
type Period struct {
	ID        int64        `json:"id"`
	TenantID  int64        `json:"tenant_id"`
	Name      string       `json:"name"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    PeriodStatus `json:"status"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Contains reports whether day falls inside the inclusive period range.
func (p Period) Contains(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(p.StartDate)) && !d.After(truncateDay(p.EndDate))
}

// Overlaps reports whether [start, end] intersects the period range.
func (p Period) Overlaps(start, end time.Time) bool {
	return !truncateDay(p.StartDate).After(truncateDay(end)) && !truncateDay(p.EndDate).Before(truncateDay(start))
}

// Entry is one manually recorded pay fact.
type Entry struct {
	ID                int64               `json:"id"`
	TenantID          int64               `json:"tenant_id"`
	PeriodID          int64               `json:"pay_period_id"`
	DriverID          int64               `json:"driver_id"`
	ProfileID         *int64              `json:"pay_profile_id,omitempty"`
	WorkDate          time.Time           `json:"work_date"`
	Type              EntryType           `json:"entry_type"`
	ReferenceCode     string              `json:"reference_code"`
	Quantity          decimal.NullDecimal `json:"quantity"`
	Rate              decimal.NullDecimal `json:"rate_amount"`
	Amount            decimal.Decimal     `json:"amount"`
	Notes             string              `json:"notes,omitempty"`
	IsManual          bool                `json:"is_manual"`
	Status            EntryStatus         `json:"status"`
	DeactivatedAt     *time.Time          `json:"deactivated_at,omitempty"`
	DeactivatedReason string              `json:"deactivated_reason,omitempty"`
	CreatedBy         string              `json:"created_by,omitempty"`
	UpdatedBy         string              `json:"updated_by,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Active reports whether the entry participates in generation and summaries.
func (e Entry) Active() bool {
	return e.Status == EntryStatusActive
}

// Key returns the natural uniqueness key of the entry.
func (e Entry) Key() EntryKey {
	return EntryKey{
		TenantID:      e.TenantID,
		DriverID:      e.DriverID,
		Type:          e.Type,
		WorkDate:      truncateDay(e.WorkDate),
		ReferenceCode: e.ReferenceCode,
	}
}

// EntryKey is the duplicate-detection key of a pay entry.
type EntryKey struct {
	TenantID      int64
	DriverID      int64
	Type          EntryType
	WorkDate      time.Time
	ReferenceCode string
}

// Profile describes how a driver is compensated over an effective range.
type Profile struct {
	ID                    int64               `json:"id"`
	TenantID              int64               `json:"tenant_id"`
	DriverID              int64               `json:"driver_id"`
	PayType               PayType             `json:"pay_type"`
	Rate                  decimal.NullDecimal `json:"rate_amount"`
	RateUnit              string              `json:"rate_unit,omitempty"`
	PercentageBasisPoints *int                `json:"percentage_basis_points,omitempty"`
	Currency              string              `json:"currency"`
	Notes                 string              `json:"notes,omitempty"`
	EffectiveStart        time.Time           `json:"effective_start"`
	EffectiveEnd          *time.Time          `json:"effective_end,omitempty"`
	IsActive              bool                `json:"is_active"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// Run is one generation target for a period, document type and worker type.
type Run struct {
	ID           int64        `json:"id"`
	TenantID     int64        `json:"tenant_id"`
	PeriodID     int64        `json:"pay_period_id"`
	DocumentType DocumentType `json:"pay_document_type"`
	WorkerType   WorkerType   `json:"worker_type_snapshot"`
	Currency     string       `json:"base_currency_snapshot"`
	PayDate      time.Time    `json:"pay_date"`
	Status       RunStatus    `json:"status"`
	PayoutStatus PayoutStatus `json:"payout_status"`
	Snapshot     *Snapshot    `json:"calculation_snapshot_json,omitempty"`
	GenerationID *uuid.UUID   `json:"generation_id,omitempty"`
	GeneratedAt  *time.Time   `json:"generated_at,omitempty"`
	FinalizedAt  *time.Time   `json:"finalized_at,omitempty"`
	FinalizedBy  *int64       `json:"finalized_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Items        []RunItem    `json:"items"`
}

// Key returns the natural key enforcing one run per combination.
func (r Run) Key() RunKey {
	return RunKey{TenantID: r.TenantID, PeriodID: r.PeriodID, DocumentType: r.DocumentType, WorkerType: r.WorkerType}
}

// RunKey is the idempotency key of CreateRun.
type RunKey struct {
	TenantID     int64
	PeriodID     int64
	DocumentType DocumentType
	WorkerType   WorkerType
}

// RunItem is one immutable line materialised from a pay entry.
type RunItem struct {
	ID               int64               `json:"id"`
	TenantID         int64               `json:"tenant_id"`
	RunID            int64               `json:"pay_run_id"`
	PayeeID          int64               `json:"payee_id"`
	SourceType       SourceType          `json:"source_type"`
	ChargeCategoryID *int64              `json:"charge_category_id,omitempty"`
	Description      string              `json:"description"`
	Quantity         decimal.NullDecimal `json:"quantity"`
	UnitRate         decimal.NullDecimal `json:"unit_rate"`
	AmountSigned     decimal.Decimal     `json:"amount_signed"`
	Currency         string              `json:"currency"`
	Metadata         ItemMetadata        `json:"metadata_json"`
	CreatedAt        time.Time           `json:"created_at"`
}

// ItemMetadata links an item back to the entry it was built from.
type ItemMetadata struct {
	EntryID       int64     `json:"entry_id"`
	EntryType     EntryType `json:"entry_type"`
	DriverID      int64     `json:"driver_id"`
	WorkDate      string    `json:"work_date"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	SourceKey     uuid.UUID `json:"source_key"`
}

// Payee is the worker or carrier entity being paid.
type Payee struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	Type        PayeeType  `json:"payee_type"`
	WorkerType  WorkerType `json:"worker_type"`
	DisplayName string     `json:"display_name"`
	IsActive    bool       `json:"is_active"`
}

// Driver is the read-only view of the external driver directory.
type Driver struct {
	ID        int64
	TenantID  int64
	FirstName string
	LastName  string
	PayeeID   *int64
}

// DisplayName joins the driver's names for payee creation.
func (d Driver) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
	if name == "" {
		return "Driver " + formatID(d.ID)
	}
	return name
}

// Snapshot is the frozen totals document written at finalize time.
type Snapshot struct {
	Gross        decimal.Decimal
	Net          decimal.Decimal
	BySourceType map[SourceType]decimal.Decimal
	Count        int
}

type snapshotDocument struct {
	Gross        string            `json:"gross"`
	Net          string            `json:"net"`
	BySourceType map[string]string `json:"by_source_type"`
	Count        int               `json:"count"`
}

// MarshalJSON renders every amount with exactly two decimals.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	doc := snapshotDocument{
		Gross:        money.Format(s.Gross),
		Net:          money.Format(s.Net),
		BySourceType: make(map[string]string, len(s.BySourceType)),
		Count:        s.Count,
	}
	for k, v := range s.BySourceType {
		doc.BySourceType[string(k)] = money.Format(v)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON parses the stored snapshot document.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	gross, err := decimal.NewFromString(doc.Gross)
	if err != nil {
		return err
	}
	net, err := decimal.NewFromString(doc.Net)
	if err != nil {
		return err
	}
	buckets := make(map[SourceType]decimal.Decimal, len(doc.BySourceType))
	for k, v := range doc.BySourceType {
		amt, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		buckets[SourceType(k)] = amt
	}
	*s = Snapshot{Gross: gross, Net: net, BySourceType: buckets, Count: doc.Count}
	return nil
}

// DriverSummary is the per-driver rollup of active entries in a period.
type DriverSummary struct {
	DriverID   int64           `json:"driver_id"`
	Miles      decimal.Decimal `json:"miles"`
	Hours      decimal.Decimal `json:"hours"`
	Earnings   decimal.Decimal `json:"earnings"`
	Deductions decimal.Decimal `json:"deductions"`
	Net        decimal.Decimal `json:"net"`
}

// PeriodSummary groups driver rollups for one period.
type PeriodSummary struct {
	PeriodID int64           `json:"pay_period_id"`
	Status   PeriodStatus    `json:"status"`
	Totals   []DriverSummary `json:"totals"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
