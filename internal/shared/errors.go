package shared

import "errors"

// Error kinds shared by every domain package. Domain errors unwrap to one of these
// so transport layers can map them without knowing the domain.
var (
	// ErrNotFound indicates a tenant-scoped resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state-machine or uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInternal indicates an unexpected failure.
	ErrInternal = errors.New("internal error")
	// ErrUnauthorized indicates missing or invalid caller identity.
	ErrUnauthorized = errors.New("unauthorized")
)
