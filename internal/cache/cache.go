package cache

import (
	"context"
	"time"

	"tokokas/backend/internal/domain"
)

// ReportCache holds rendered profit/loss reports keyed by store. Writes
// after a checkout or restock go through Invalidate so stale margins never
// reach the report endpoint.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ProfitLossReport, bool, error)
	Set(ctx context.Context, key string, value *domain.ProfitLossReport, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ProfitLossReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ProfitLossReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
