package core

import (
	"cmp"
	"sort"
	"strings"
)

// SortField represents a field that can be sorted on.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByCategory SortField = "category"
)

// SortDirection represents sort order.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortOptions holds sorting preferences.
type SortOptions struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSortOptions returns the list default: date descending, newest first.
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field:     SortByDate,
		Direction: SortDesc,
	}
}

// ParseSortOptions builds options from raw strings, falling back to the
// defaults for anything unrecognised.
func ParseSortOptions(field, direction string) SortOptions {
	opts := DefaultSortOptions()
	switch SortField(strings.ToLower(strings.TrimSpace(field))) {
	case SortByDate:
		opts.Field = SortByDate
	case SortByAmount:
		opts.Field = SortByAmount
	case SortByCategory:
		opts.Field = SortByCategory
	}
	switch SortDirection(strings.ToLower(strings.TrimSpace(direction))) {
	case SortAsc:
		opts.Direction = SortAsc
	case SortDesc:
		opts.Direction = SortDesc
	}
	return opts
}

// String returns the sort options as a string (e.g., "date:desc").
func (s SortOptions) String() string {
	return string(s.Field) + ":" + string(s.Direction)
}

func (s SortOptions) compare(a, b Expense) int {
	switch s.Field {
	case SortByAmount:
		return cmp.Compare(a.Amount.Cents, b.Amount.Cents)
	case SortByCategory:
		return strings.Compare(string(a.Category), string(b.Category))
	default:
		return a.Date.Compare(b.Date.Time)
	}
}

// SortExpenses returns a sorted copy of expenses. The sort is stable in both
// directions: equal keys keep their input order.
func SortExpenses(expenses []Expense, opts SortOptions) []Expense {
	out := make([]Expense, len(expenses))
	copy(out, expenses)
	desc := opts.Direction == SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		c := opts.compare(out[i], out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}
