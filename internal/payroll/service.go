package payroll

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Config carries engine-wide settings that used to be ambient globals.
type Config struct {
	// Currency is the default base currency for new pay runs.
	Currency string
	// AmountLimit caps |effective amount| of an entry. Non-positive disables the cap.
	AmountLimit decimal.Decimal
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{Currency: "USD", AmountLimit: decimal.NewFromInt(100000)}
}

// Notifier receives post-commit lifecycle events.
type Notifier interface {
	PeriodClosed(ctx context.Context, period Period) error
	RunFinalized(ctx context.Context, run Run) error
}

// Recorder observes engine operations.
type Recorder interface {
	ObservePayrollOperation(op string, err error, elapsed time.Duration)
	AddRunItems(count int)
}

// SummaryCache memoises period summaries per tenant.
type SummaryCache interface {
	Fetch(ctx context.Context, tenantID, periodID int64, load func(context.Context) (PeriodSummary, error)) (PeriodSummary, error)
	Invalidate(ctx context.Context, tenantID int64) error
}

// Service orchestrates pay periods, the entry ledger and pay runs.
type Service struct {
	repo     Repository
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	notifier Notifier
	recorder Recorder
	cache    SummaryCache
}

// NewService constructs a Service instance.
func NewService(repo Repository, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = DefaultConfig().Currency
	}
	return &Service{
		repo:   repo,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetLogger replaces the logger used for internal failures.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetNotifier wires post-commit notifications.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetRecorder wires operation metrics.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetCache wires the summary cache.
func (s *Service) SetCache(c SummaryCache) {
	s.cache = c
}

// Config returns the active engine configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// finish records the outcome of op and converts unexpected failures into
// ErrInternal after logging them with their context.
func (s *Service) finish(op string, start time.Time, err error, attrs ...slog.Attr) error {
	if s.recorder != nil {
		s.recorder.ObservePayrollOperation(op, err, time.Since(start))
	}
	if err == nil || IsDomain(err) {
		return err
	}
	args := make([]any, 0, len(attrs)+1)
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args, slog.Any("error", err))
	s.logger.Error(op, args...)
	return ErrInternal.Wrap(err)
}

// invalidate drops cached summaries for the tenant after a committed mutation.
func (s *Service) invalidate(ctx context.Context, tenantID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("invalidate payroll summary cache", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
	}
}
