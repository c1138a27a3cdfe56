package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFilter(t *testing.T) {
	extra := append(januarySample(),
		expense("4", 1500, CategoryEntertainment, "2024-02-01", "Cinema tickets"),
		expense("5", 900, CategoryShopping, "2023-12-31", "Bills folder"),
	)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps everything", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"category exact", Filter{Category: "Food"}, []string{"1", "2"}},
		{"category case-insensitive", Filter{Category: "food"}, []string{"1", "2"}},
		{"All is no constraint", Filter{Category: "All"}, []string{"1", "2", "3", "4", "5"}},
		{"unknown category is no constraint", Filter{Category: "Travel"}, []string{"1", "2", "3", "4", "5"}},
		{"categories set", Filter{Categories: []Category{CategoryBills, CategoryShopping}}, []string{"3", "5"}},
		{"category and set are ANDed", Filter{Category: "Bills", Categories: []Category{CategoryFood}}, []string{}},
		{"date from inclusive", Filter{DateFrom: "2024-01-10"}, []string{"2", "3", "4"}},
		{"date to inclusive", Filter{DateTo: "2024-01-10"}, []string{"1", "2", "5"}},
		{"date range", Filter{DateFrom: "2024-01-01", DateTo: "2024-01-31"}, []string{"1", "2", "3"}},
		{"malformed bound ignored", Filter{DateFrom: "yesterday", DateTo: "2024-01-05"}, []string{"1", "5"}},
		{"search description", Filter{SearchTerm: "LUNCH"}, []string{"2"}},
		{"search matches category or description", Filter{SearchTerm: "bills"}, []string{"3", "5"}},
		{"search is trimmed", Filter{SearchTerm: "  cinema "}, []string{"4"}},
		{"all criteria", Filter{Category: "Food", DateFrom: "2024-01-06", SearchTerm: "team"}, []string{"2"}},
		{"nothing matches", Filter{SearchTerm: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(ApplyFilter(extra, tt.filter)))
		})
	}
}

func TestApplyFilterExamples(t *testing.T) {
	sample := januarySample()

	byFood := ApplyFilter(sample, Filter{Category: "Food"})
	assert.Equal(t, sample[:2], byFood)

	bySearch := ApplyFilter(sample, Filter{SearchTerm: "bills"})
	assert.Equal(t, []Expense{sample[2]}, bySearch)
}

func TestApplyFilterIdentity(t *testing.T) {
	sample := januarySample()
	got := ApplyFilter(sample, Filter{})
	assert.Equal(t, sample, got)

	got[0].Description = "changed"
	assert.Equal(t, "Groceries", sample[0].Description, "result must not alias the input")

	assert.Empty(t, ApplyFilter(nil, Filter{Category: "Food"}))
}

func TestApplyFilterComposition(t *testing.T) {
	sample := append(januarySample(),
		expense("4", 700, CategoryFood, "2024-01-11", "Team snacks"),
	)
	for _, cat := range []string{"Food", "Bills", "All", ""} {
		for _, term := range []string{"team", "e", "", "nope"} {
			combined := ApplyFilter(sample, Filter{Category: cat, SearchTerm: term})
			chained := ApplyFilter(ApplyFilter(sample, Filter{Category: cat}), Filter{SearchTerm: term})
			assert.Equal(t, combined, chained, "category=%q term=%q", cat, term)
		}
	}
}

func TestFilterIsEmpty(t *testing.T) {
	assert.True(t, Filter{}.IsEmpty())
	assert.True(t, Filter{Category: "All", SearchTerm: "  ", DateFrom: "bad"}.IsEmpty())
	assert.False(t, Filter{Category: "Bills"}.IsEmpty())
	assert.False(t, Filter{DateTo: "2024-01-01"}.IsEmpty())
}

func TestFilterKey(t *testing.T) {
	a := Filter{Category: "food", SearchTerm: " Team "}
	b := Filter{Category: "Food", SearchTerm: "team"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Filter{}.Key())

	x := Filter{Categories: []Category{CategoryBills, CategoryFood}}
	y := Filter{Categories: []Category{CategoryFood, CategoryBills}}
	assert.Equal(t, x.Key(), y.Key())
}
