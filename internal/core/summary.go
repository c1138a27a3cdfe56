package core

import (
	"sort"
	"time"
)

// maxTopCategories bounds Summary.TopCategories.
const maxTopCategories = 5

// CategorySummary is the aggregate of one category within a set of expenses.
type CategorySummary struct {
	Category   Category `json:"category"`
	Total      Money    `json:"total"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// Summary is the dashboard overview of a set of expenses.
type Summary struct {
	TotalSpend      Money             `json:"totalSpend"`
	MonthlyTotal    Money             `json:"monthlyTotal"`
	ExpenseCount    int               `json:"expenseCount"`
	CategorySummary []CategorySummary `json:"categorySummary"`
	TopCategories   []CategorySummary `json:"topCategories"`
}

// MonthTotal is one bucket of a monthly trend series.
type MonthTotal struct {
	Year  int    `json:"year"`
	Month int    `json:"month"` // 1-12
	Label string `json:"label"`
	Total Money  `json:"total"`
	Count int    `json:"count"`
}

// ExportSummary describes the records about to be exported.
type ExportSummary struct {
	RecordCount    int              `json:"recordCount"`
	TotalAmount    Money            `json:"totalAmount"`
	CategoryCounts map[Category]int `json:"categoryCounts"`
	Earliest       *Date            `json:"earliest,omitempty"`
	Latest         *Date            `json:"latest,omitempty"`
}

// Summarize computes totals and the per-category breakdown. The current
// month is the calendar month of now. Categories appear in the order they
// are first seen in expenses.
func Summarize(expenses []Expense, now time.Time) Summary {
	s := Summary{
		CategorySummary: []CategorySummary{},
		TopCategories:   []CategorySummary{},
	}

	index := make(map[Category]int)
	for _, e := range expenses {
		s.TotalSpend = s.TotalSpend.Add(e.Amount)
		s.ExpenseCount++
		if e.Date.SameMonth(now) {
			s.MonthlyTotal = s.MonthlyTotal.Add(e.Amount)
		}

		i, ok := index[e.Category]
		if !ok {
			i = len(s.CategorySummary)
			index[e.Category] = i
			s.CategorySummary = append(s.CategorySummary, CategorySummary{Category: e.Category})
		}
		s.CategorySummary[i].Total = s.CategorySummary[i].Total.Add(e.Amount)
		s.CategorySummary[i].Count++
	}

	for i := range s.CategorySummary {
		s.CategorySummary[i].Percentage = percentage(s.CategorySummary[i].Total, s.TotalSpend)
	}

	top := make([]CategorySummary, len(s.CategorySummary))
	copy(top, s.CategorySummary)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Total.Cents > top[j].Total.Cents
	})
	if len(top) > maxTopCategories {
		top = top[:maxTopCategories]
	}
	s.TopCategories = top

	return s
}

func percentage(part, total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return float64(part.Cents) * 100 / float64(total.Cents)
}

// MonthlyTrend buckets expenses into the last months calendar months ending
// with now's month, oldest first. Months without expenses are zero-filled.
func MonthlyTrend(expenses []Expense, now time.Time, months int) []MonthTotal {
	if months <= 0 {
		return []MonthTotal{}
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	trend := make([]MonthTotal, months)
	for i := range trend {
		m := first.AddDate(0, i, 0)
		trend[i] = MonthTotal{
			Year:  m.Year(),
			Month: int(m.Month()),
			Label: m.Format("Jan 2006"),
		}
	}

	for _, e := range expenses {
		i := (e.Date.Year()-first.Year())*12 + int(e.Date.Month()) - int(first.Month())
		if i < 0 || i >= months {
			continue
		}
		trend[i].Total = trend[i].Total.Add(e.Amount)
		trend[i].Count++
	}
	return trend
}

// MonthOverMonthChange returns the percent change of the last bucket versus
// the one before it. It is 0 when there is no previous spend to compare with.
func MonthOverMonthChange(trend []MonthTotal) float64 {
	if len(trend) < 2 {
		return 0
	}
	prev := trend[len(trend)-2].Total
	cur := trend[len(trend)-1].Total
	if prev.Cents == 0 {
		return 0
	}
	return float64(cur.Cents-prev.Cents) * 100 / float64(prev.Cents)
}

// RecentExpenses returns the n most recently created expenses, newest first.
func RecentExpenses(expenses []Expense, n int) []Expense {
	if n <= 0 {
		return []Expense{}
	}
	out := make([]Expense, len(expenses))
	copy(out, expenses)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SummarizeExport counts records and finds the covered date range.
func SummarizeExport(expenses []Expense) ExportSummary {
	s := ExportSummary{CategoryCounts: make(map[Category]int)}
	for _, e := range expenses {
		s.RecordCount++
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		s.CategoryCounts[e.Category]++

		d := e.Date
		if s.Earliest == nil || d.Before(s.Earliest.Time) {
			s.Earliest = &d
		}
		if s.Latest == nil || d.After(s.Latest.Time) {
			s.Latest = &d
		}
	}
	return s
}
