package payrollhttp

import (
	"net/http"
	"strings"

	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/platform/httpx"
)

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	driverID, err := queryID(r, "driver_id")
	if err != nil {
		h.fail(w, "list profiles", err)
		return
	}
	profiles, err := h.service.ListProfiles(r.Context(), payroll.ListProfilesFilter{
		TenantID:        identity(r).TenantID,
		DriverID:        driverID,
		IncludeInactive: queryBool(r, "include_inactive"),
	})
	if err != nil {
		h.fail(w, "list profiles", err)
		return
	}
	resp := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		resp = append(resp, toProfileResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := parseDate(req.EffectiveStart)
	if err != nil {
		h.fail(w, "create profile", err)
		return
	}
	end, err := parseDatePtr(req.EffectiveEnd)
	if err != nil {
		h.fail(w, "create profile", err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	profile, err := h.service.CreateProfile(r.Context(), payroll.CreateProfileInput{
		TenantID:              identity(r).TenantID,
		DriverID:              req.DriverID,
		PayType:               payroll.PayType(req.PayType),
		Rate:                  nullDecimal(req.RateAmount),
		RateUnit:              req.RateUnit,
		PercentageBasisPoints: req.PercentageBasisPoints,
		Currency:              strings.ToUpper(req.Currency),
		Notes:                 req.Notes,
		EffectiveStart:        start,
		EffectiveEnd:          end,
		IsActive:              active,
	})
	if err != nil {
		h.fail(w, "create profile", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "get profile", err)
		return
	}
	profile, err := h.service.GetProfile(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "get profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := parseDatePtr(req.EffectiveStart)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	end, err := parseDatePtr(req.EffectiveEnd)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), payroll.UpdateProfileInput{
		TenantID:              identity(r).TenantID,
		ID:                    id,
		Rate:                  req.RateAmount,
		RateUnit:              req.RateUnit,
		PercentageBasisPoints: req.PercentageBasisPoints,
		Currency:              req.Currency,
		Notes:                 req.Notes,
		EffectiveStart:        start,
		EffectiveEnd:          end,
		IsActive:              req.IsActive,
	})
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) deactivateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, "deactivate profile", err)
		return
	}
	profile, err := h.service.DeactivateProfile(r.Context(), identity(r).TenantID, id)
	if err != nil {
		h.fail(w, "deactivate profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}
