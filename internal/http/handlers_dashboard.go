package http

import (
	"bytes"
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
	"expensetracker/internal/log"
)

type summaryResponse struct {
	core.Summary
	Recent         []core.Expense `json:"recent"`
	MonthOverMonth float64        `json:"monthOverMonth"`
}

// handleSummary returns dashboard totals for the filtered expenses.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := parseFilter(r.URL.Query())

	NewJSONResponse().Data(summaryResponse{
		Summary:        s.svc.Summary(ctx, f),
		Recent:         s.svc.Recent(ctx, recentCount),
		MonthOverMonth: core.MonthOverMonthChange(s.svc.Trend(ctx, f, 2)),
	}).Write(w)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	months := parseMonths(q, s.trendMonths)
	NewJSONResponse().Data(s.svc.Trend(r.Context(), parseFilter(q), months)).Write(w)
}

type categoryInfo struct {
	Name  core.Category `json:"name"`
	Color string        `json:"color"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.Categories()
	out := make([]categoryInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryInfo{Name: c, Color: c.Color()})
	}
	NewJSONResponse().Data(out).Write(w)
}

// handleExport renders the filtered list as an attachment. The document is
// rendered fully before any header is sent so failures still get a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		BadRequestError("format must be one of csv, json, pdf").Write(w)
		return
	}

	expenses := s.svc.List(r.Context(), parseFilter(q), parseSort(q))
	now := s.svc.Now()

	var buf bytes.Buffer
	if err := export.Write(&buf, format, expenses, now); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			log.FieldOperation, log.OpExport,
			log.FieldFormat, string(format),
			log.FieldError, err.Error())
		InternalServerError("Export failed").Write(w)
		return
	}

	filename := export.Filename(sanitizeFilename(q.Get("filename")), format, now)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expenses exported",
		log.FieldOperation, log.OpExport,
		log.FieldFormat, string(format),
		log.FieldCount, len(expenses))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.svc.ExportSummary(r.Context(), parseFilter(r.URL.Query()))).Write(w)
}

// sanitizeFilename keeps letters, digits, dot, dash and underscore.
func sanitizeFilename(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range sanitizeInput(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			out = append(out, r)
		}
	}
	if len(out) > 100 {
		out = out[:100]
	}
	return string(out)
}
