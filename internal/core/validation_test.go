package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	got, errs := ValidateInput(ExpenseInput{
		Date:        "2024-01-15",
		Amount:      "12,345",
		Category:    "food",
		Description: "  Pizza night  ",
	})
	require.Nil(t, errs)
	assert.Equal(t, ValidatedExpense{
		Date:        NewDate(2024, 1, 15),
		Amount:      Money{Cents: 1235},
		Category:    CategoryFood,
		Description: "Pizza night",
	}, got)
}

func TestValidateInputDefaultsCategory(t *testing.T) {
	got, errs := ValidateInput(ExpenseInput{Date: "2024-01-15", Amount: "3", Description: "misc"})
	require.Nil(t, errs)
	assert.Equal(t, CategoryOther, got.Category)
}

func TestValidateInputAllErrors(t *testing.T) {
	got, errs := ValidateInput(ExpenseInput{Amount: "-5", Description: "", Date: ""})
	assert.Equal(t, ValidatedExpense{}, got)
	require.Len(t, errs, 3)
	assert.Contains(t, errs, "amount")
	assert.Contains(t, errs, "description")
	assert.Contains(t, errs, "date")
	assert.Equal(t, "Date is required", errs["date"])
	assert.Equal(t, "Description is required", errs["description"])
	assert.Equal(t, "Amount must be a number greater than 0", errs["amount"])
}

func TestValidateInputFieldErrors(t *testing.T) {
	base := ExpenseInput{Date: "2024-01-15", Amount: "10", Category: "Bills", Description: "rent"}

	tests := []struct {
		name  string
		edit  func(*ExpenseInput)
		field string
	}{
		{"bad date", func(in *ExpenseInput) { in.Date = "2024-02-30" }, "date"},
		{"wrong date layout", func(in *ExpenseInput) { in.Date = "15/01/2024" }, "date"},
		{"zero amount", func(in *ExpenseInput) { in.Amount = "0" }, "amount"},
		{"text amount", func(in *ExpenseInput) { in.Amount = "ten" }, "amount"},
		{"missing amount", func(in *ExpenseInput) { in.Amount = " " }, "amount"},
		{"whitespace description", func(in *ExpenseInput) { in.Description = "   " }, "description"},
		{"long description", func(in *ExpenseInput) { in.Description = strings.Repeat("é", 201) }, "description"},
		{"unknown category", func(in *ExpenseInput) { in.Category = "Travel" }, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.edit(&in)
			_, errs := ValidateInput(in)
			require.Len(t, errs, 1)
			assert.Contains(t, errs, tt.field)
		})
	}

	_, errs := ValidateInput(ExpenseInput{Date: "2024-01-15", Amount: "1", Description: strings.Repeat("é", 200)})
	assert.Nil(t, errs, "200 characters is the limit, not 200 bytes")
}

func TestValidationErrorsIsErrValidation(t *testing.T) {
	_, errs := ValidateInput(ExpenseInput{})
	require.NotEmpty(t, errs)

	var err error = errs
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "date: Date is required")

	var target ValidationErrors
	require.True(t, errors.As(err, &target))
	assert.Equal(t, errs, target)
}
