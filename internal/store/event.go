package store

import "time"

// Event is one entry of the expense change history.
type Event struct {
	ID         string
	Type       string
	ExpenseID  string
	Payload    []byte // JSON snapshot of the expense, nil for deletions
	OccurredAt time.Time
}
