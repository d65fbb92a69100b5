package payroll

import (
	"errors"
	"strconv"

	"github.com/fleetledger/fleetledger/internal/shared"
)

// Kind classifies payroll errors for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
)

// String names the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a payroll failure with a stable machine-readable code.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "payroll: " + e.Code
	}
	return "payroll: " + e.Detail
}

// ErrorCode exposes the stable code to transport layers.
func (e *Error) ErrorCode() string {
	return e.Code
}

// Unwrap exposes the shared kind sentinel and any wrapped cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.kindSentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is matches another *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

func (e *Error) kindSentinel() error {
	switch e.Kind {
	case KindValidation:
		return shared.ErrValidation
	case KindConflict:
		return shared.ErrConflict
	case KindNotFound:
		return shared.ErrNotFound
	default:
		return shared.ErrInternal
	}
}

// With returns a copy of e carrying a more specific detail.
func (e *Error) With(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Wrap returns a copy of e recording cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func validation(code, detail string) *Error {
	return &Error{Kind: KindValidation, Code: code, Detail: detail}
}

func conflict(code, detail string) *Error {
	return &Error{Kind: KindConflict, Code: code, Detail: detail}
}

func notFound(code, detail string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Detail: detail}
}

// Validation errors.
var (
	ErrInvalidInput        = validation("PAYROLL_VALIDATION", "invalid input")
	ErrInvalidDateRange    = validation("PAYROLL_INVALID_DATE_RANGE", "start date cannot be after end date")
	ErrInvalidEntryType    = validation("PAYROLL_INVALID_ENTRY_TYPE", "entry type must be one of MILES, HOURS, GROSS, ADJUSTMENT, DEDUCTION")
	ErrAmountRequired      = validation("PAYROLL_AMOUNT_REQUIRED", "amount or quantity and rate required")
	ErrAmountZero          = validation("PAYROLL_AMOUNT_ZERO", "effective amount rounds to zero")
	ErrAmountNegative      = validation("PAYROLL_AMOUNT_NEGATIVE", "amount must be positive for this entry type")
	ErrAmountOutOfRange    = validation("PAYROLL_AMOUNT_OUT_OF_RANGE", "amount exceeds the configured bound")
	ErrWorkDateOutside     = validation("PAYROLL_WORK_DATE_OUTSIDE_PERIOD", "work date outside pay period")
	ErrProfileMismatch     = validation("PAYROLL_PROFILE_MISMATCH", "pay profile does not match driver")
	ErrProfileInactive     = validation("PAYROLL_PROFILE_INACTIVE", "pay profile is inactive")
	ErrInvalidCurrency     = validation("PAYRUN_INVALID_CURRENCY", "currency must be an ISO 4217 code")
	ErrInvalidPayType      = validation("PAYROLL_INVALID_PAY_TYPE", "pay type must be one of PER_MILE, HOURLY, PERCENTAGE, SALARY")
	ErrInvalidDocumentType = validation("PAYRUN_INVALID_DOCUMENT_TYPE", "unknown pay document type")
	ErrInvalidWorkerType   = validation("PAYRUN_INVALID_WORKER_TYPE", "unknown worker type")
)

// Conflict errors.
var (
	ErrPeriodOverlap        = conflict("PAYROLL_PERIOD_OVERLAP", "pay period overlaps an open period")
	ErrPeriodClosed         = conflict("PAYROLL_PERIOD_CLOSED", "pay period is closed")
	ErrPeriodNotClosed      = conflict("PAYROLL_PERIOD_NOT_CLOSED", "only closed periods can be reopened")
	ErrPeriodFinalizedRuns  = conflict("PAYROLL_PERIOD_FINALIZED_RUNS", "pay period has finalized runs")
	ErrPeriodEntriesOutside = conflict("PAYROLL_PERIOD_ENTRIES_OUTSIDE", "active entries fall outside the new range")
	ErrWorkDateLocked       = conflict("PAYROLL_WORK_DATE_LOCKED", "work date falls inside a closed period")
	ErrEntryDuplicate       = conflict("PAYROLL_ENTRY_DUPLICATE", "pay entry already exists for driver, type, date and reference")
	ErrEntryVoid            = conflict("PAYROLL_ENTRY_VOID", "voided entries cannot be edited")
	ErrProfileOverlap       = conflict("PAYROLL_PROFILE_OVERLAP", "active pay profile already exists for this driver in the given date range")
	ErrRunFinalized         = conflict("PAYRUN_FINALIZED", "pay run is finalized")
	ErrRunVoided            = conflict("PAYRUN_VOIDED", "pay run is voided")
	ErrRunPeriodOpen        = conflict("PAYRUN_PERIOD_OPEN", "pay period must be closed")
	ErrRunDuplicate         = conflict("PAYRUN_DUPLICATE", "pay run already exists")
	ErrRunNoItems           = conflict("PAYRUN_NO_ITEMS", "no items to finalize")
)

// Not found errors.
var (
	ErrPeriodNotFound    = notFound("PAYROLL_PERIOD_NOT_FOUND", "pay period not found")
	ErrEntryNotFound     = notFound("PAYROLL_ENTRY_NOT_FOUND", "pay entry not found")
	ErrDriverNotFound    = notFound("PAYROLL_DRIVER_NOT_FOUND", "driver not found")
	ErrProfileNotFound   = notFound("PAYROLL_PROFILE_NOT_FOUND", "pay profile not found")
	ErrRunNotFound       = notFound("PAYRUN_NOT_FOUND", "pay run not found")
	ErrRunPeriodNotFound = notFound("PAYRUN_PERIOD_NOT_FOUND", "pay period not found")
)

// ErrInternal is returned for unexpected failures.
var ErrInternal = &Error{Kind: KindInternal, Code: "PAYROLL_INTERNAL", Detail: "internal error"}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// IsDomain reports whether err is a payroll business-rule error.
func IsDomain(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind != KindInternal
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
