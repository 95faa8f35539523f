package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"shopmate/backend/internal/domain"
)

func TestSummaryKeyIsShopPrefixed(t *testing.T) {
	key := SummaryKey("shop-1", "", "7days")
	if !strings.HasPrefix(key, shopPrefix+"shop-1:") {
		t.Fatalf("expected key under shop prefix, got %q", key)
	}
	if SummaryKey("shop-1", "b1", "7days") == key {
		t.Fatalf("expected branch to be part of the key")
	}
}

func TestNoopSummaryCacheNeverHits(t *testing.T) {
	var c SummaryCache = NoopSummaryCache{}
	ctx := context.Background()
	if err := c.Set(ctx, "k", &domain.ReportSummary{Timeframe: "7days"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}
