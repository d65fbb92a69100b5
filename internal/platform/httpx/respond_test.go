package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetledger/fleetledger/internal/shared"
)

type codedError struct {
	code string
	kind error
}

func (e codedError) Error() string     { return "coded: " + e.code }
func (e codedError) ErrorCode() string { return e.code }
func (e codedError) Unwrap() error     { return e.kind }

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{codedError{"X_NOT_FOUND", shared.ErrNotFound}, http.StatusNotFound, "X_NOT_FOUND"},
		{codedError{"X_CLOSED", shared.ErrConflict}, http.StatusConflict, "X_CLOSED"},
		{codedError{"X_BAD", shared.ErrValidation}, http.StatusBadRequest, "X_BAD"},
		{codedError{"PAYRUN_NO_ITEMS", shared.ErrConflict}, http.StatusUnprocessableEntity, "PAYRUN_NO_ITEMS"},
		{fmt.Errorf("wrapped: %w", shared.ErrUnauthorized), http.StatusUnauthorized, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
		require.Equal(t, tc.code, body.Code)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed"))
	require.NotContains(t, rec.Body.String(), "password")
}

func TestDecodeJSONRejectsUnknownAndTrailing(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "a", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nme":"a"}`))
	require.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"} {}`))
	require.Error(t, DecodeJSON(req, &target))
}
