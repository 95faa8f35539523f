package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopmate/backend/internal/report"
)

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if !isCollection(w, r, "/api/reports/summary/") {
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format == "" {
		format = report.FormatJSON
	}
	contentType, ok := report.ContentType(format)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("format must be one of json, csv, xlsx, pdf"))
		return
	}

	summary, err := a.service.ReportSummary(r.Context(), query.Get("timeframe"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if format == report.FormatJSON {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	var buf bytes.Buffer
	if err := report.Export(&buf, format, summary); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(summary, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
