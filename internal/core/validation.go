package core

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ExpenseInput is the raw expense form as submitted by a client.
type ExpenseInput struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Amount      string `json:"amount" validate:"required,amount"`
	Category    string `json:"category" validate:"omitempty,category"`
	Description string `json:"description" validate:"required,max=200"`
}

// ValidatedExpense is an input that passed every check, ready to become an Expense.
type ValidatedExpense struct {
	Date        Date
	Amount      Money
	Category    Category
	Description string
}

// ValidationErrors maps a field name (date, amount, category, description)
// to a user-facing message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationErrors.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "amount", func(fl validator.FieldLevel) bool {
		_, err := ParseMoney(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		_, err := ParseCategory(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

var fieldLabels = map[string]string{
	"date":        "Date",
	"amount":      "Amount",
	"category":    "Category",
	"description": "Description",
}

func message(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "datetime":
		return label + " must be a valid date (YYYY-MM-DD)"
	case "amount":
		return label + " must be a number greater than 0"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "category":
		names := make([]string, 0, len(Categories()))
		for _, c := range Categories() {
			names = append(names, string(c))
		}
		return label + " must be one of " + strings.Join(names, ", ")
	default:
		return label + " is invalid"
	}
}

// ValidateInput checks every field of in and either returns a complete
// ValidatedExpense or the full set of field errors, never both.
// The description is trimmed before it is checked and an empty category
// defaults to Other.
func ValidateInput(in ExpenseInput) (ValidatedExpense, ValidationErrors) {
	in.Date = strings.TrimSpace(in.Date)
	in.Amount = strings.TrimSpace(in.Amount)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)

	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return ValidatedExpense{}, ValidationErrors{"input": err.Error()}
		}
		out := make(ValidationErrors, len(fieldErrs))
		for _, fe := range fieldErrs {
			if _, seen := out[fe.Field()]; !seen {
				out[fe.Field()] = message(fe)
			}
		}
		return ValidatedExpense{}, out
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return ValidatedExpense{}, ValidationErrors{"date": "Date must be a valid date (YYYY-MM-DD)"}
	}
	amount, err := ParseMoney(in.Amount)
	if err != nil {
		return ValidatedExpense{}, ValidationErrors{"amount": "Amount must be a number greater than 0"}
	}
	category := CategoryOther
	if in.Category != "" {
		if category, err = ParseCategory(in.Category); err != nil {
			return ValidatedExpense{}, ValidationErrors{"category": "Category is invalid"}
		}
	}

	return ValidatedExpense{
		Date:        date,
		Amount:      amount,
		Category:    category,
		Description: in.Description,
	}, nil
}
