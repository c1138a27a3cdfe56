package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/core"
)

// Event types published on every successful mutation.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseUpdated = "expense.updated"
	EventExpenseDeleted = "expense.deleted"
)

// ExpenseSnapshot is the expense as it was right after the change.
type ExpenseSnapshot struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExpenseEvent announces a change to the expense collection. ID is unique per
// event so consumers can drop redeliveries.
type ExpenseEvent struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	ExpenseID string           `json:"expense_id"`
	Expense   *ExpenseSnapshot `json:"expense,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// SnapshotOf copies e into its wire form.
func SnapshotOf(e core.Expense) *ExpenseSnapshot {
	return &ExpenseSnapshot{
		ID:          e.ID,
		Date:        e.Date.String(),
		AmountCents: e.Amount.Cents,
		Category:    string(e.Category),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ToExpense converts the snapshot back into a domain expense.
func (s *ExpenseSnapshot) ToExpense() (core.Expense, error) {
	date, err := core.ParseDate(s.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("snapshot date: %w", err)
	}
	e := core.Expense{
		ID:          s.ID,
		Date:        date,
		Amount:      core.Money{Cents: s.AmountCents},
		Category:    core.Category(s.Category),
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	return e, e.Validate()
}

// NewExpenseEvent builds an event for a created or updated expense.
func NewExpenseEvent(eventType string, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		ExpenseID: e.ID,
		Expense:   SnapshotOf(e),
		Timestamp: time.Now().UTC(),
	}
}

// NewDeletedEvent builds an event for a removed expense.
func NewDeletedEvent(expenseID string) *ExpenseEvent {
	return &ExpenseEvent{
		ID:        uuid.NewString(),
		Type:      EventExpenseDeleted,
		ExpenseID: expenseID,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the fields consumers rely on.
func (m *ExpenseEvent) Validate() error {
	if m.ID == "" || m.ExpenseID == "" {
		return fmt.Errorf("event is missing id or expense_id")
	}
	switch m.Type {
	case EventExpenseCreated, EventExpenseUpdated:
		if m.Expense == nil {
			return fmt.Errorf("%s event without expense snapshot", m.Type)
		}
	case EventExpenseDeleted:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates a message body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
