package payrollhttp

import (
	"net/http"

	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/platform/httpx"
)

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	periodID, err := queryID(r, "pay_period_id")
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	if periodID == nil {
		h.fail(w, "list entries", payroll.ErrInvalidInput.With("pay_period_id is required"))
		return
	}
	driverID, err := queryID(r, "driver_id")
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	entries, err := h.service.ListEntries(r.Context(), payroll.ListEntriesFilter{
		TenantID:        identity(r).TenantID,
		PeriodID:        *periodID,
		DriverID:        driverID,
		IncludeInactive: queryBool(r, "include_inactive"),
	})
	if err != nil {
		h.fail(w, "list entries", err)
		return
	}
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	workDate, err := parseDate(req.WorkDate)
	if err != nil {
		h.fail(w, "create entry", err)
		return
	}
	id := identity(r)
	entry, err := h.service.CreateEntry(r.Context(), payroll.CreateEntryInput{
		TenantID:      id.TenantID,
		PeriodID:      req.PayPeriodID,
		DriverID:      req.DriverID,
		ProfileID:     req.PayProfileID,
		WorkDate:      workDate,
		Type:          payroll.EntryType(req.EntryType),
		ReferenceCode: req.ReferenceCode,
		Quantity:      nullDecimal(req.Quantity),
		Rate:          nullDecimal(req.RateAmount),
		Amount:        nullDecimal(req.Amount),
		Notes:         req.Notes,
		Actor:         id.Actor(),
	})
	if err != nil {
		h.fail(w, "create entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "get entry", err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "get entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r)
	if err != nil {
		h.fail(w, "update entry", err)
		return
	}
	var req updateEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := identity(r)
	entry, err := h.service.UpdateEntry(r.Context(), payroll.UpdateEntryInput{
		TenantID:      id.TenantID,
		ID:            entryID,
		Quantity:      req.Quantity,
		Rate:          req.RateAmount,
		Amount:        req.Amount,
		ReferenceCode: req.ReferenceCode,
		Notes:         req.Notes,
		Actor:         id.Actor(),
	})
	if err != nil {
		h.fail(w, "update entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) voidEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r)
	if err != nil {
		h.fail(w, "void entry", err)
		return
	}
	var req voidEntryRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	id := identity(r)
	entry, err := h.service.VoidEntry(r.Context(), id.TenantID, entryID, req.Reason, id.Actor())
	if err != nil {
		h.fail(w, "void entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}
