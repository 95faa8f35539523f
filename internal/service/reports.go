package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"shopmate/backend/internal/cache"
	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/report"
	"shopmate/backend/internal/store"
)

func (s *Service) ReportSummary(ctx context.Context, timeframe string) (domain.ReportSummary, error) {
	scope, err := s.ResolveScope(ctx)
	if err != nil {
		return domain.ReportSummary{}, err
	}

	now := s.now().UTC()
	timeframe, from, err := report.Window(strings.TrimSpace(timeframe), now)
	if err != nil {
		if errors.Is(err, report.ErrUnknownTimeframe) {
			return domain.ReportSummary{}, fmt.Errorf("%w: timeframe must be one of 7days, 30days, 3months, 12months", store.ErrInvalidInput)
		}
		return domain.ReportSummary{}, err
	}
	if !scope.HasShop() {
		return report.Build("", "", timeframe, from, now, nil, nil), nil
	}

	key := cache.SummaryKey(scope.ShopID, scope.BranchID, timeframe)
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache read failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	sales, err := s.repo.ListSales(ctx, scope, store.ListFilter{From: from, To: now})
	if err != nil {
		return domain.ReportSummary{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, scope, store.ListFilter{From: from})
	if err != nil {
		return domain.ReportSummary{}, err
	}

	summary := report.Build(scope.ShopID, scope.BranchID, timeframe, from, now, sales, expenses)
	if err := s.reports.Set(ctx, key, &summary, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed key=%s: %v", key, err)
	}
	return summary, nil
}
