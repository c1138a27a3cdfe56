package store

import (
	"context"

	"expensetracker/internal/core"
)

// Ports for outbound persistence adapters.
type (
	// Repository is the persistence boundary of the expense collection.
	// Implementations wrap underlying failures with core.ErrStorage.
	Repository interface {
		// GetAll returns every stored expense in insertion order.
		GetAll(ctx context.Context) ([]core.Expense, error)
		Add(ctx context.Context, e core.Expense) error
		// Update replaces the expense with the same ID, or returns core.ErrNotFound.
		Update(ctx context.Context, e core.Expense) error
		// Remove deletes by ID, or returns core.ErrNotFound.
		Remove(ctx context.Context, id string) error
		Close() error
	}

	// EventRecorder keeps an append-only history of expense changes.
	EventRecorder interface {
		RecordEvent(ctx context.Context, ev Event) error
		ListEvents(ctx context.Context, expenseID string) ([]Event, error)
	}
)
