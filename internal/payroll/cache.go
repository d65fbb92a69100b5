package payroll

import (
	"context"

	"github.com/fleetledger/fleetledger/internal/platform/cache"
)

// RedisSummaryCache stores period summaries in a versioned Redis namespace per tenant.
type RedisSummaryCache struct {
	cache *cache.Versioned
}

// NewSummaryCache wraps a versioned cache.
func NewSummaryCache(c *cache.Versioned) *RedisSummaryCache {
	return &RedisSummaryCache{cache: c}
}

// Fetch returns the cached summary or computes it with load.
func (c *RedisSummaryCache) Fetch(ctx context.Context, tenantID, periodID int64, load func(context.Context) (PeriodSummary, error)) (PeriodSummary, error) {
	key, err := c.cache.BuildKey(ctx, tenantNamespace(tenantID), "summary", formatID(periodID))
	if err != nil {
		return load(ctx)
	}
	var out PeriodSummary
	err = c.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return PeriodSummary{}, err
	}
	return out, nil
}

// Invalidate bumps the tenant namespace.
func (c *RedisSummaryCache) Invalidate(ctx context.Context, tenantID int64) error {
	return c.cache.Bump(ctx, tenantNamespace(tenantID))
}

func tenantNamespace(tenantID int64) string {
	return "tenant:" + formatID(tenantID)
}
