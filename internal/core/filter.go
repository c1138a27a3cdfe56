package core

import (
	"strings"
	"time"
)

// Filter holds the optional predicates used to narrow an expense list.
// An empty field means "no constraint"; active criteria are ANDed.
type Filter struct {
	Category   string     // exact category, "" or "All" for any
	Categories []Category // category must be one of these when non-empty
	DateFrom   string     // inclusive lower bound, YYYY-MM-DD
	DateTo     string     // inclusive upper bound, YYYY-MM-DD
	SearchTerm string     // case-insensitive match on description or category
}

// IsEmpty reports whether no criterion is active.
func (f Filter) IsEmpty() bool {
	p := f.compile()
	return !p.hasCategory && len(p.categories) == 0 && p.from == nil && p.to == nil && p.search == ""
}

// Key returns a stable string identifying the active criteria, used for caching.
func (f Filter) Key() string {
	p := f.compile()
	var b strings.Builder
	if p.hasCategory {
		b.WriteString("c=" + string(p.category))
	}
	if len(p.categories) > 0 {
		b.WriteString(";in=")
		for _, c := range Categories() {
			if _, ok := p.categories[c]; ok {
				b.WriteString(string(c) + ",")
			}
		}
	}
	if p.from != nil {
		b.WriteString(";from=" + p.from.Format(DateLayout))
	}
	if p.to != nil {
		b.WriteString(";to=" + p.to.Format(DateLayout))
	}
	if p.search != "" {
		b.WriteString(";q=" + p.search)
	}
	return b.String()
}

// predicate is a Filter with its bounds parsed once.
type predicate struct {
	hasCategory bool
	category    Category
	categories  map[Category]struct{}
	from, to    *time.Time
	search      string
}

func (f Filter) compile() predicate {
	var p predicate

	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, AllCategories) {
		// Unknown categories are ignored rather than matching nothing.
		if parsed, err := ParseCategory(c); err == nil {
			p.hasCategory = true
			p.category = parsed
		}
	}

	for _, c := range f.Categories {
		if !c.Valid() {
			continue
		}
		if p.categories == nil {
			p.categories = make(map[Category]struct{})
		}
		p.categories[c] = struct{}{}
	}

	if d, err := ParseDate(f.DateFrom); err == nil {
		p.from = &d.Time
	}
	if d, err := ParseDate(f.DateTo); err == nil {
		p.to = &d.Time
	}

	p.search = strings.ToLower(strings.TrimSpace(f.SearchTerm))
	return p
}

func (p predicate) match(e Expense) bool {
	if p.hasCategory && e.Category != p.category {
		return false
	}
	if len(p.categories) > 0 {
		if _, ok := p.categories[e.Category]; !ok {
			return false
		}
	}
	if p.from != nil && e.Date.Before(*p.from) {
		return false
	}
	if p.to != nil && e.Date.After(*p.to) {
		return false
	}
	if p.search != "" &&
		!strings.Contains(strings.ToLower(e.Description), p.search) &&
		!strings.Contains(strings.ToLower(string(e.Category)), p.search) {
		return false
	}
	return true
}

// ApplyFilter returns the expenses matching every active criterion of f,
// in input order. The input slice is never modified.
func ApplyFilter(expenses []Expense, f Filter) []Expense {
	p := f.compile()
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if p.match(e) {
			out = append(out, e)
		}
	}
	return out
}
