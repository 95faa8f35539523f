package cache

import (
	"context"
	"fmt"
	"time"

	"shopmate/backend/internal/domain"
)

type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.ReportSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.ReportSummary, ttl time.Duration) error
	InvalidateShop(ctx context.Context, shopID string) error
}

// SummaryKey is shop-prefixed so that every summary of a shop can be dropped
// with one pattern.
func SummaryKey(shopID string, branchID string, timeframe string) string {
	return fmt.Sprintf("%s%s:%s:%s", shopPrefix, shopID, branchID, timeframe)
}

const shopPrefix = "report:summary:"

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.ReportSummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.ReportSummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) InvalidateShop(_ context.Context, _ string) error {
	return nil
}
