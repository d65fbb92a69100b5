package payrollhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/platform/httpx"
)

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	var status *payroll.PeriodStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := payroll.PeriodStatus(strings.ToUpper(raw))
		status = &s
	}
	periods, err := h.service.ListPeriods(r.Context(), identity(r).TenantID, status)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	resp := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		resp = append(resp, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), payroll.CreatePeriodInput{
		TenantID:  identity(r).TenantID,
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "get period", err)
		return
	}
	period, err := h.service.GetPeriod(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "get period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) updatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "update period", err)
		return
	}
	var req updatePeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := parseDatePtr(req.StartDate)
	if err != nil {
		h.fail(w, "update period", err)
		return
	}
	end, err := parseDatePtr(req.EndDate)
	if err != nil {
		h.fail(w, "update period", err)
		return
	}
	period, err := h.service.UpdatePeriod(r.Context(), payroll.UpdatePeriodInput{
		TenantID:  identity(r).TenantID,
		ID:        id,
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(w, "update period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) openPeriod(w http.ResponseWriter, r *http.Request) {
	h.transitionPeriod(w, r, "open period", h.service.OpenPeriod)
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	h.transitionPeriod(w, r, "close period", h.service.ClosePeriod)
}

func (h *Handler) transitionPeriod(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, tenantID, id int64) (payroll.Period, error)) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	period, err := fn(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) summarizePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "summarize period", err)
		return
	}
	summary, err := h.service.SummarizePeriod(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "summarize period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSummaryResponse(summary))
}
