package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"shopmate/backend/internal/domain"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, time.May, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want string
		from time.Time
	}{
		{"", Timeframe30Days, now.Add(-30 * 24 * time.Hour)},
		{"7days", Timeframe7Days, now.Add(-7 * 24 * time.Hour)},
		{"3months", Timeframe3Months, time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC)},
		{"12months", Timeframe12Months, time.Date(2023, time.May, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, from, err := Window(tc.in, now)
		if err != nil {
			t.Fatalf("window %q: %v", tc.in, err)
		}
		if got != tc.want || !from.Equal(tc.from) {
			t.Fatalf("window %q: got %s from %s, want %s from %s", tc.in, got, from, tc.want, tc.from)
		}
	}

	if _, _, err := Window("yesterday", now); !errors.Is(err, ErrUnknownTimeframe) {
		t.Fatalf("expected unknown timeframe error, got %v", err)
	}
}

func TestBuildTotalsAndCalendarOrderedBuckets(t *testing.T) {
	from := time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	// Input order deliberately starts with the latest month.
	sales := []domain.Sale{
		{TotalAmount: money("300"), ProfitAmount: money("100"), CreatedAt: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)},
		{TotalAmount: money("200"), ProfitAmount: money("50"), CreatedAt: time.Date(2023, time.December, 5, 0, 0, 0, 0, time.UTC)},
		{TotalAmount: money("100"), ProfitAmount: money("25"), CreatedAt: time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)},
	}
	expenses := []domain.Expense{
		{Amount: money("40"), Date: time.Date(2023, time.November, 15, 0, 0, 0, 0, time.UTC)},
		{Amount: money("10"), Date: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
	}

	s := Build("shop", "", Timeframe3Months, from, to, sales, expenses)
	if !s.TotalRevenue.Equal(money("600")) || !s.GrossProfit.Equal(money("175")) {
		t.Fatalf("unexpected revenue/gross: %s / %s", s.TotalRevenue, s.GrossProfit)
	}
	if !s.TotalExpense.Equal(money("50")) || !s.TotalProfit.Equal(money("125")) {
		t.Fatalf("unexpected expense/profit: %s / %s", s.TotalExpense, s.TotalProfit)
	}
	if s.SaleCount != 3 || s.ExpenseCount != 2 {
		t.Fatalf("unexpected counts: %d / %d", s.SaleCount, s.ExpenseCount)
	}

	want := []struct {
		month string
		year  int
	}{{"Nov", 2023}, {"Dec", 2023}, {"Jan", 2024}}
	if len(s.ChartData) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(s.ChartData))
	}
	for i, w := range want {
		if s.ChartData[i].Month != w.month || s.ChartData[i].Year != w.year {
			t.Fatalf("bucket %d: got %s %d, want %s %d", i, s.ChartData[i].Month, s.ChartData[i].Year, w.month, w.year)
		}
	}
	if !s.ChartData[2].Revenue.Equal(money("400")) || !s.ChartData[2].Expense.Equal(money("10")) {
		t.Fatalf("unexpected January bucket: %+v", s.ChartData[2])
	}
}

func TestBuildEmpty(t *testing.T) {
	s := Build("shop", "", Timeframe7Days, time.Now(), time.Now(), nil, nil)
	if !s.TotalProfit.IsZero() || s.ChartData == nil || len(s.ChartData) != 0 {
		t.Fatalf("expected zero summary with empty chart data, got %+v", s)
	}
}

func sampleSummary() domain.ReportSummary {
	return Build("shop", "", Timeframe30Days,
		time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC),
		[]domain.Sale{{TotalAmount: money("150.5"), ProfitAmount: money("50"), CreatedAt: time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC)}},
		nil,
	)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, FormatCSV, sampleSummary()); err != nil {
		t.Fatalf("export csv: %v", err)
	}
	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	found := false
	for _, rec := range records {
		if len(rec) == 2 && rec[0] == "Total revenue" && rec[1] == "150.50" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected revenue row in csv, got %v", records)
	}
	last := records[len(records)-1]
	if last[0] != "May" || last[1] != "2024" {
		t.Fatalf("expected May 2024 chart row last, got %v", last)
	}
}

func TestExportXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, FormatXLSX, sampleSummary()); err != nil {
		t.Fatalf("export xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	val, err := f.GetCellValue("Summary", "B4")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if val != "150.50" {
		t.Fatalf("expected revenue 150.50 in B4, got %q", val)
	}
	month, _ := f.GetCellValue("Monthly", "A2")
	if month != "May" {
		t.Fatalf("expected May in Monthly!A2, got %q", month)
	}
}

func TestExportPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, FormatPDF, sampleSummary()); err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected pdf header")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if err := Export(&bytes.Buffer{}, "docx", sampleSummary()); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
	if _, ok := ContentType("docx"); ok {
		t.Fatalf("expected docx to be unsupported")
	}
}
