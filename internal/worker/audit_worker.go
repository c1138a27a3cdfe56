package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/store"
)

// AuditWorker records expense change events into the event history.
type AuditWorker struct {
	recorder store.EventRecorder
	now      func() time.Time
}

func NewAuditWorker(recorder store.EventRecorder) *AuditWorker {
	return &AuditWorker{
		recorder: recorder,
		now:      time.Now,
	}
}

// HandleEvent processes a single change event from AMQP. Redelivered events
// are recorded once because the recorder ignores duplicate event ids.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"expense_id", ev.ExpenseID)

	var payload []byte
	if ev.Expense != nil {
		b, err := json.Marshal(ev.Expense)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		payload = b
	}

	occurred := ev.Timestamp
	if occurred.IsZero() {
		occurred = w.now().UTC()
	}

	if err := w.recorder.RecordEvent(ctx, store.Event{
		ID:         ev.ID,
		Type:       ev.Type,
		ExpenseID:  ev.ExpenseID,
		Payload:    payload,
		OccurredAt: occurred,
	}); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	slog.InfoContext(ctx, "Recorded expense event",
		"event_id", ev.ID,
		"expense_id", ev.ExpenseID)
	return nil
}

// History returns the recorded events of one expense, oldest first. An empty
// id returns the full history.
func (w *AuditWorker) History(ctx context.Context, expenseID string) ([]store.Event, error) {
	events, err := w.recorder.ListEvents(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// StartupCheck logs the size of the history so operators can see the worker
// resumed against the right database.
func (w *AuditWorker) StartupCheck(ctx context.Context) error {
	events, err := w.recorder.ListEvents(ctx, "")
	if err != nil {
		return fmt.Errorf("startup check: %w", err)
	}
	slog.InfoContext(ctx, "Audit history loaded", "events", len(events))
	return nil
}
