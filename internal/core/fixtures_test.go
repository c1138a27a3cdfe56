package core

import "time"

var fixtureCreated = time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)

func expense(id string, cents int64, cat Category, date, desc string) Expense {
	d, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	return Expense{
		ID:          id,
		Date:        d,
		Amount:      Money{Cents: cents},
		Category:    cat,
		Description: desc,
		CreatedAt:   fixtureCreated,
		UpdatedAt:   fixtureCreated,
	}
}

// januarySample is the three-record collection used across engine tests.
func januarySample() []Expense {
	return []Expense{
		expense("1", 5000, CategoryFood, "2024-01-05", "Groceries"),
		expense("2", 3000, CategoryFood, "2024-01-10", "Lunch with team"),
		expense("3", 2000, CategoryBills, "2024-01-15", "Electricity"),
	}
}

func ids(expenses []Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}
