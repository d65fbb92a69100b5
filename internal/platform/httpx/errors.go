// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/fleetledger/fleetledger/internal/shared"
)

// coder is implemented by domain errors carrying a stable machine-readable code.
type coder interface {
	ErrorCode() string
}

// statusOverrides pins codes whose status differs from their kind.
var statusOverrides = map[string]int{
	"PAYRUN_NO_ITEMS": http.StatusUnprocessableEntity,
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	code := ""
	var c coder
	if errors.As(err, &c) {
		code = c.ErrorCode()
	}
	if status, ok := statusOverrides[code]; ok {
		ProblemWithCode(w, status, http.StatusText(status), err.Error(), code)
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		ProblemWithCode(w, http.StatusNotFound, "Not Found", err.Error(), code)
	case errors.Is(err, shared.ErrConflict):
		ProblemWithCode(w, http.StatusConflict, "Conflict", err.Error(), code)
	case errors.Is(err, shared.ErrValidation):
		ProblemWithCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), code)
	case errors.Is(err, shared.ErrUnauthorized):
		ProblemWithCode(w, http.StatusUnauthorized, "Unauthorized", err.Error(), code)
	default:
		ProblemWithCode(w, http.StatusInternalServerError, "Internal Error", "", code)
	}
}
