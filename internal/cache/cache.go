package cache

import (
	"context"
	"time"

	"familypos/backend/internal/report"
)

// ReportCache stores built reports for periods that can no longer change.
type ReportCache interface {
	Get(ctx context.Context, key string) (*report.Report, bool, error)
	Set(ctx context.Context, key string, value *report.Report, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*report.Report, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *report.Report, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
