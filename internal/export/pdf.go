package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"expensetracker/internal/core"
)

const maxPDFDescription = 60

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 28, "L"},
	{"Description", 92, "L"},
	{"Category", 36, "L"},
	{"Amount", 30, "R"},
}

// WritePDF renders a report with a summary block followed by the expense table.
func WritePDF(w io.Writer, expenses []core.Expense, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Expense Report", true)
	pdf.SetCreationDate(now)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Expense Report")
	pdf.Ln(12)

	summary := core.SummarizeExport(expenses)
	pdf.SetFont("Helvetica", "", 11)
	line := func(s string) {
		pdf.Cell(0, 6, tr(s))
		pdf.Ln(6)
	}
	line("Generated on: " + now.Format(core.DateLayout))
	line(fmt.Sprintf("Total records: %d", summary.RecordCount))
	line("Total amount: " + summary.TotalAmount.String())
	if summary.Earliest != nil && summary.Latest != nil {
		line("Date range: " + summary.Earliest.String() + " to " + summary.Latest.String())
	}

	totals := core.Summarize(expenses, now).CategorySummary
	if len(totals) > 0 {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 12)
		line("By category")
		pdf.SetFont("Helvetica", "", 11)
		for _, c := range totals {
			line(fmt.Sprintf("%s: %s (%d, %.1f%%)", c.Category, c.Total, c.Count, c.Percentage))
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(229, 231, 235)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range expenses {
		cells := []string{e.Date.String(), truncate(e.Description, maxPDFDescription), e.Category.String(), e.Amount.String()}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 6, tr(cells[i]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
