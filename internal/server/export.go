package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/focusdeck/focusdeck/internal/export"
)

// handleReportExport streams the assembled report as a JSON or CSV
// download. It runs outside the timeout middleware so the response
// is written directly, not buffered.
func (s *Server) handleReportExport(
	w http.ResponseWriter, r *http.Request,
) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest,
			"format must be json or csv")
		return
	}

	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf(
		"focusdeck-report-%s-%s.%s",
		report.Period, time.Now().UTC().Format("20060102"), format,
	)
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filename),
	)

	var err error
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, report)
	default:
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, report)
	}
	if err != nil {
		// Headers are already sent; log rather than re-reporting.
		log.Printf("export error: %v", err)
	}
}
