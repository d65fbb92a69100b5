package payrollhttp

import (
	"net/http"
	"strings"

	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/platform/httpx"
)

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	periodID, err := queryID(r, "pay_period_id")
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	runs, err := h.service.ListRuns(r.Context(), payroll.ListRunsFilter{TenantID: identity(r).TenantID, PeriodID: periodID})
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if !h.decode(w, r, &req) {
		return
	}
	payDate, err := parseDatePtr(req.PayDate)
	if err != nil {
		h.fail(w, "create run", err)
		return
	}
	run, created, err := h.service.CreateRun(r.Context(), payroll.CreateRunInput{
		TenantID:     identity(r).TenantID,
		PeriodID:     req.PayPeriodID,
		DocumentType: payroll.DocumentType(req.PayDocumentType),
		WorkerType:   payroll.WorkerType(req.WorkerType),
		Currency:     strings.ToUpper(req.Currency),
		PayDate:      payDate,
	})
	if err != nil {
		h.fail(w, "create run", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, toRunResponse(run))
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "get run", err)
		return
	}
	run, err := h.service.GetRun(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "get run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) generateRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "generate run", err)
		return
	}
	count, err := h.service.GenerateRun(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "generate run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"pay_run_id": id,
		"items":      count,
		"status":     payroll.RunStatusGenerated,
	})
}

func (h *Handler) finalizeRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "finalize run", err)
		return
	}
	ident := identity(r)
	run, err := h.service.FinalizeRun(r.Context(), ident.TenantID, id, ident.ActorID)
	if err != nil {
		h.fail(w, "finalize run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) voidRun(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "void run", err)
		return
	}
	run, err := h.service.VoidRun(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "void run", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRunResponse(run))
}
