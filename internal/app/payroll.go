package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fleetledger/fleetledger/internal/payroll"
	"github.com/fleetledger/fleetledger/internal/platform/cache"
)

// PayrollDeps carries the collaborators shared by the server and the worker.
// Redis, Recorder and Notifier are optional.
type PayrollDeps struct {
	Config   *Config
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Logger   *slog.Logger
	Recorder payroll.Recorder
	Notifier payroll.Notifier
}

// NewPayrollService builds the payroll engine over Postgres with the summary
// cache and post-commit hooks wired when their backends are present.
func NewPayrollService(deps PayrollDeps) (*payroll.Service, error) {
	pc, err := deps.Config.Payroll()
	if err != nil {
		return nil, err
	}
	svc := payroll.NewService(payroll.NewPostgresRepository(deps.Pool), pc)
	if deps.Logger != nil {
		svc.SetLogger(deps.Logger)
	}
	if deps.Recorder != nil {
		svc.SetRecorder(deps.Recorder)
	}
	if deps.Notifier != nil {
		svc.SetNotifier(deps.Notifier)
	}
	if deps.Redis != nil {
		ttl := deps.Config.PayrollSummaryCacheTTL
		svc.SetCache(payroll.NewSummaryCache(cache.NewVersioned(deps.Redis, "fleetledger:payroll", ttl)))
	}
	return svc, nil
}
