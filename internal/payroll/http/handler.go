package payrollhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/platform/httpx"
	"github.com/fleetledger/fleetledger/internal/shared"
)

type payrollService interface {
	CreatePeriod(ctx context.Context, in payroll.CreatePeriodInput) (payroll.Period, error)
	OpenPeriod(ctx context.Context, tenantID, id int64) (payroll.Period, error)
	ClosePeriod(ctx context.Context, tenantID, id int64) (payroll.Period, error)
	UpdatePeriod(ctx context.Context, in payroll.UpdatePeriodInput) (payroll.Period, error)
	GetPeriod(ctx context.Context, tenantID, id int64) (payroll.Period, error)
	ListPeriods(ctx context.Context, tenantID int64, status *payroll.PeriodStatus) ([]payroll.Period, error)
	SummarizePeriod(ctx context.Context, tenantID, periodID int64) (payroll.PeriodSummary, error)

	CreateEntry(ctx context.Context, in payroll.CreateEntryInput) (payroll.Entry, error)
	UpdateEntry(ctx context.Context, in payroll.UpdateEntryInput) (payroll.Entry, error)
	VoidEntry(ctx context.Context, tenantID, id int64, reason, actor string) (payroll.Entry, error)
	GetEntry(ctx context.Context, tenantID, id int64) (payroll.Entry, error)
	ListEntries(ctx context.Context, filter payroll.ListEntriesFilter) ([]payroll.Entry, error)

	CreateProfile(ctx context.Context, in payroll.CreateProfileInput) (payroll.Profile, error)
	UpdateProfile(ctx context.Context, in payroll.UpdateProfileInput) (payroll.Profile, error)
	DeactivateProfile(ctx context.Context, tenantID, id int64) (payroll.Profile, error)
	GetProfile(ctx context.Context, tenantID, id int64) (payroll.Profile, error)
	ListProfiles(ctx context.Context, filter payroll.ListProfilesFilter) ([]payroll.Profile, error)

	CreateRun(ctx context.Context, in payroll.CreateRunInput) (payroll.Run, bool, error)
	GenerateRun(ctx context.Context, tenantID, runID int64) (int, error)
	FinalizeRun(ctx context.Context, tenantID, runID int64, actor *int64) (payroll.Run, error)
	VoidRun(ctx context.Context, tenantID, runID int64) (payroll.Run, error)
	GetRun(ctx context.Context, tenantID, runID int64) (payroll.Run, error)
	ListRuns(ctx context.Context, filter payroll.ListRunsFilter) ([]payroll.Run, error)
}

// Handler exposes the payroll engine as a JSON API.
type Handler struct {
	logger    *slog.Logger
	service   payrollService
	validator *validator.Validate
}

// NewHandler constructs a payroll HTTP handler.
func NewHandler(logger *slog.Logger, service payrollService) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers HTTP routes under /api/v1/payroll.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api/v1/payroll", func(r chi.Router) {
		r.Use(h.requireIdentity)

		r.Route("/pay-periods", func(r chi.Router) {
			r.Get("/", h.listPeriods)
			r.Post("/", h.createPeriod)
			r.Get("/{id}", h.getPeriod)
			r.Patch("/{id}", h.updatePeriod)
			r.Post("/{id}/open", h.openPeriod)
			r.Post("/{id}/close", h.closePeriod)
			r.Get("/{id}/summary", h.summarizePeriod)
		})
		r.Route("/pay-entries", func(r chi.Router) {
			r.Get("/", h.listEntries)
			r.Post("/", h.createEntry)
			r.Get("/{id}", h.getEntry)
			r.Patch("/{id}", h.updateEntry)
			r.Post("/{id}/void", h.voidEntry)
		})
		r.Route("/pay-profiles", func(r chi.Router) {
			r.Get("/", h.listProfiles)
			r.Post("/", h.createProfile)
			r.Get("/{id}", h.getProfile)
			r.Patch("/{id}", h.updateProfile)
			r.Post("/{id}/deactivate", h.deactivateProfile)
		})
		r.Route("/pay-runs", func(r chi.Router) {
			r.Get("/", h.listRuns)
			r.Post("/", h.createRun)
			r.Get("/{id}", h.getRun)
			r.Post("/{id}/generate", h.generateRun)
			r.Post("/{id}/finalize", h.finalizeRun)
			r.Post("/{id}/void", h.voidRun)
		})
	})
}

// requireIdentity resolves the tenant and actor headers.
func (h *Handler) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := shared.IdentityFromRequest(r)
		if err != nil {
			httpx.ProblemWithCode(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid "+shared.TenantHeader+" header", "TENANT_REQUIRED")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

func identity(r *http.Request) shared.Identity {
	id, _ := shared.IdentityFromContext(r.Context())
	return id
}

// fail writes err as a problem response, logging unexpected failures.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if payroll.IsDomain(err) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// decode reads and validates a JSON body. It writes the problem response and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, payroll.ErrInvalidInput.With(err.Error()))
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			httpx.RespondError(w, payroll.ErrInvalidInput.With(err.Error()))
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields[fieldErr.Field()] = describeFieldError(fieldErr)
		}
		httpx.ValidationProblem(w, payroll.ErrInvalidInput.Code, fields)
		return false
	}
	return true
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date formatted " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, payroll.ErrInvalidInput.With("invalid id in path")
	}
	return id, nil
}

func queryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, payroll.ErrInvalidInput.With("invalid " + key)
	}
	return &id, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
