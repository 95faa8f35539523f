package report

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
)

const (
	Timeframe7Days    = "7days"
	Timeframe30Days   = "30days"
	Timeframe3Months  = "3months"
	Timeframe12Months = "12months"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Window returns the start of the reporting window ending at now. An empty
// timeframe selects 30days.
func Window(timeframe string, now time.Time) (string, time.Time, error) {
	now = now.UTC()
	switch timeframe {
	case "", Timeframe30Days:
		return Timeframe30Days, now.Add(-30 * 24 * time.Hour), nil
	case Timeframe7Days:
		return Timeframe7Days, now.Add(-7 * 24 * time.Hour), nil
	case Timeframe3Months:
		return Timeframe3Months, now.AddDate(0, -3, 0), nil
	case Timeframe12Months:
		return Timeframe12Months, now.AddDate(0, -12, 0), nil
	default:
		return "", time.Time{}, ErrUnknownTimeframe
	}
}

// Build aggregates sales and expenses that already fall inside the window.
func Build(shopID string, branchID string, timeframe string, from time.Time, to time.Time, sales []domain.Sale, expenses []domain.Expense) domain.ReportSummary {
	summary := domain.ReportSummary{
		ShopID:       shopID,
		BranchID:     branchID,
		Timeframe:    timeframe,
		From:         from.UTC(),
		To:           to.UTC(),
		TotalRevenue: decimal.Zero,
		TotalExpense: decimal.Zero,
		GrossProfit:  decimal.Zero,
		SaleCount:    len(sales),
		ExpenseCount: len(expenses),
	}

	type bucketKey struct {
		year  int
		month time.Month
	}
	buckets := make(map[bucketKey]*domain.ChartPoint)
	bucket := func(at time.Time) *domain.ChartPoint {
		at = at.UTC()
		key := bucketKey{year: at.Year(), month: at.Month()}
		point, ok := buckets[key]
		if !ok {
			point = &domain.ChartPoint{
				Month:   at.Month().String()[:3],
				Year:    at.Year(),
				Revenue: decimal.Zero,
				Expense: decimal.Zero,
			}
			buckets[key] = point
		}
		return point
	}

	for _, sale := range sales {
		summary.TotalRevenue = summary.TotalRevenue.Add(sale.TotalAmount)
		summary.GrossProfit = summary.GrossProfit.Add(sale.ProfitAmount)
		point := bucket(sale.CreatedAt)
		point.Revenue = point.Revenue.Add(sale.TotalAmount)
	}
	for _, expense := range expenses {
		summary.TotalExpense = summary.TotalExpense.Add(expense.Amount)
		point := bucket(expense.Date)
		point.Expense = point.Expense.Add(expense.Amount)
	}
	summary.TotalProfit = summary.GrossProfit.Sub(summary.TotalExpense)

	keys := make([]bucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b bucketKey) int {
		return cmp.Or(cmp.Compare(a.year, b.year), cmp.Compare(a.month, b.month))
	})
	summary.ChartData = make([]domain.ChartPoint, 0, len(keys))
	for _, key := range keys {
		summary.ChartData = append(summary.ChartData, *buckets[key])
	}
	return summary
}
