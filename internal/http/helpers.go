package http

import (
	"net/url"
	"strconv"
	"strings"

	"expensetracker/internal/core"
)

// sanitizeInput drops control characters other than tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseFilter reads category, categories, from, to and q. Unknown
// categories are dropped from the categories list.
func parseFilter(q url.Values) core.Filter {
	f := core.Filter{
		Category:   sanitizeInput(q.Get("category")),
		DateFrom:   sanitizeInput(q.Get("from")),
		DateTo:     sanitizeInput(q.Get("to")),
		SearchTerm: sanitizeInput(q.Get("q")),
	}
	for _, raw := range q["categories"] {
		for _, name := range strings.Split(raw, ",") {
			if c, err := core.ParseCategory(name); err == nil {
				f.Categories = append(f.Categories, c)
			}
		}
	}
	return f
}

func parseSort(q url.Values) core.SortOptions {
	return core.ParseSortOptions(q.Get("sort"), q.Get("dir"))
}

// parseMonths returns the months query value clamped to 1..maxTrendMonths.
func parseMonths(q url.Values, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("months")))
	if err != nil {
		return fallback
	}
	if n < 1 {
		return 1
	}
	if n > maxTrendMonths {
		return maxTrendMonths
	}
	return n
}
