// Package export renders expense lists as CSV, JSON or PDF documents.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"expensetracker/internal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat matches s case-insensitively. An empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Filename returns base with the format extension, or expenses_YYYY-MM-DD
// when base is blank. A matching extension already on base is kept.
func Filename(base string, f Format, now time.Time) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "expenses_" + now.Format(core.DateLayout)
	}
	if strings.HasSuffix(strings.ToLower(base), f.Extension()) {
		return base
	}
	return base + f.Extension()
}

// Write renders expenses in format f.
func Write(w io.Writer, f Format, expenses []core.Expense, now time.Time) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, expenses)
	case FormatJSON:
		return WriteJSON(w, expenses)
	case FormatPDF:
		return WritePDF(w, expenses, now)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

var csvHeader = []string{"Date", "Description", "Category", "Amount"}

// WriteCSV writes one row per expense after a header row. Amounts carry two
// decimals.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		row := []string{e.Date.String(), e.Description, e.Category.String(), e.Amount.String()}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the expenses as an indented JSON array.
func WriteJSON(w io.Writer, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(expenses); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
