package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"shopmate/backend/internal/domain"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ContentType reports the media type of an export format. JSON is rendered by
// the caller and is not handled by Export.
func ContentType(format string) (string, bool) {
	switch format {
	case FormatJSON:
		return "application/json", true
	case FormatCSV:
		return "text/csv; charset=utf-8", true
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", true
	case FormatPDF:
		return "application/pdf", true
	}
	return "", false
}

func Filename(summary domain.ReportSummary, format string) string {
	return fmt.Sprintf("summary_%s_%s.%s", summary.Timeframe, summary.To.Format("20060102"), format)
}

func Export(w io.Writer, format string, summary domain.ReportSummary) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, summary)
	case FormatXLSX:
		return writeXLSX(w, summary)
	case FormatPDF:
		return writePDF(w, summary)
	}
	return ErrUnknownFormat
}

func totalsRows(summary domain.ReportSummary) [][]string {
	return [][]string{
		{"Timeframe", summary.Timeframe},
		{"From", summary.From.Format("2006-01-02")},
		{"To", summary.To.Format("2006-01-02")},
		{"Total revenue", summary.TotalRevenue.StringFixed(2)},
		{"Total expense", summary.TotalExpense.StringFixed(2)},
		{"Gross profit", summary.GrossProfit.StringFixed(2)},
		{"Total profit", summary.TotalProfit.StringFixed(2)},
		{"Sales", strconv.Itoa(summary.SaleCount)},
		{"Expenses", strconv.Itoa(summary.ExpenseCount)},
	}
}

var chartHeader = []string{"Month", "Year", "Revenue", "Expense"}

func chartRow(point domain.ChartPoint) []string {
	return []string{point.Month, strconv.Itoa(point.Year), point.Revenue.StringFixed(2), point.Expense.StringFixed(2)}
}

func writeCSV(w io.Writer, summary domain.ReportSummary) error {
	cw := csv.NewWriter(w)
	for _, row := range totalsRows(summary) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write(chartHeader); err != nil {
		return err
	}
	for _, point := range summary.ChartData {
		if err := cw.Write(chartRow(point)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, summary domain.ReportSummary) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	const summarySheet = "Summary"
	const chartSheet = "Monthly"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for i, row := range totalsRows(summary) {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 16); err != nil {
		return err
	}

	if _, err := f.NewSheet(chartSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(chartSheet, "A1", &chartHeader); err != nil {
		return err
	}
	for i, point := range summary.ChartData {
		row := chartRow(point)
		if err := f.SetSheetRow(chartSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writePDF(w io.Writer, summary domain.ReportSummary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Sales Summary", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	for _, row := range totalsRows(summary) {
		pdf.CellFormat(60, 8, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	widths := []float64{40, 30, 50, 50}
	pdf.SetFont("Arial", "B", 12)
	for i, h := range chartHeader {
		pdf.CellFormat(widths[i], 10, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 12)
	for _, point := range summary.ChartData {
		row := chartRow(point)
		pdf.CellFormat(widths[0], 10, row[0], "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 10, row[1], "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 10, row[2], "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 10, row[3], "1", 1, "R", false, 0, "")
	}
	return pdf.Output(w)
}
