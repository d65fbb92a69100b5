package payroll

import (
	"context"
	"log/slog"
)

// SummarizePeriod rolls the period's ACTIVE entries up per driver. Results are
// served from the summary cache when one is wired.
func (s *Service) SummarizePeriod(ctx context.Context, tenantID, periodID int64) (PeriodSummary, error) {
	start := s.now()
	load := func(ctx context.Context) (PeriodSummary, error) {
		period, err := s.repo.GetPeriod(ctx, tenantID, periodID)
		if err != nil {
			return PeriodSummary{}, err
		}
		totals, err := s.repo.SummarizePeriod(ctx, tenantID, periodID)
		if err != nil {
			return PeriodSummary{}, err
		}
		if totals == nil {
			totals = []DriverSummary{}
		}
		return PeriodSummary{PeriodID: period.ID, Status: period.Status, Totals: totals}, nil
	}

	var (
		summary PeriodSummary
		err     error
	)
	if s.cache != nil {
		summary, err = s.cache.Fetch(ctx, tenantID, periodID, load)
	} else {
		summary, err = load(ctx)
	}
	if err = s.finish("payroll.summarize_period", start, err, slog.Int64("tenant_id", tenantID), slog.Int64("period_id", periodID)); err != nil {
		return PeriodSummary{}, err
	}
	return summary, nil
}

// WarmSummary recomputes and caches the summary of one period.
func (s *Service) WarmSummary(ctx context.Context, tenantID, periodID int64) error {
	_, err := s.SummarizePeriod(ctx, tenantID, periodID)
	return err
}

// OpenPeriods lists OPEN periods across tenants for scheduled warmups.
func (s *Service) OpenPeriods(ctx context.Context) ([]Period, error) {
	periods, err := s.repo.ListOpenPeriods(ctx)
	if err != nil {
		return nil, s.finish("payroll.open_periods", s.now(), err)
	}
	return periods, nil
}
