package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"

	"expensetracker/internal/core"
	"expensetracker/internal/store"

	_ "modernc.org/sqlite"
)

const (
	expensesTable = "expenses"
	eventsTable   = "expense_events"
	// fixed-width so text ordering matches time ordering
	timeLayout    = "2006-01-02T15:04:05.000000000Z07:00"
)

var expenseColumns = []string{"id", "date", "amount_cents", "category", "description", "created_at", "updated_at"}

// SQLiteRepository implements store.Repository and store.EventRecorder.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ store.Repository    = (*SQLiteRepository)(nil)
	_ store.EventRecorder = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetAll implements store.Repository
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	query, args, err := sq.Select(expenseColumns...).
		From(expensesTable).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build select: %v", core.ErrStorage, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list expenses: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan expense: %v", core.ErrStorage, err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate expenses: %v", core.ErrStorage, err)
	}
	return expenses, nil
}

// Add implements store.Repository
func (r *SQLiteRepository) Add(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query, args, err := sq.Insert(expensesTable).
		Columns(expenseColumns...).
		Values(e.ID, e.Date.String(), e.Amount.Cents, string(e.Category), e.Description,
			e.CreatedAt.UTC().Format(timeLayout), e.UpdatedAt.UTC().Format(timeLayout)).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build insert: %v", core.ErrStorage, err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insert expense: %v", core.ErrStorage, err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return nil
}

// Update implements store.Repository
func (r *SQLiteRepository) Update(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query, args, err := sq.Update(expensesTable).
		Set("date", e.Date.String()).
		Set("amount_cents", e.Amount.Cents).
		Set("category", string(e.Category)).
		Set("description", e.Description).
		Set("updated_at", e.UpdatedAt.UTC().Format(timeLayout)).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build update: %v", core.ErrStorage, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: update expense: %v", core.ErrStorage, err)
	}
	return requireAffected(res)
}

// Remove implements store.Repository
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	query, args, err := sq.Delete(expensesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build delete: %v", core.ErrStorage, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: delete expense: %v", core.ErrStorage, err)
	}
	return requireAffected(res)
}

// RecordEvent implements store.EventRecorder. Replaying an event with an
// already stored ID is a no-op.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, ev store.Event) error {
	var payload any
	if ev.Payload != nil {
		payload = string(ev.Payload)
	}
	query, args, err := sq.Insert(eventsTable).
		Options("OR IGNORE").
		Columns("id", "type", "expense_id", "payload", "occurred_at").
		Values(ev.ID, ev.Type, ev.ExpenseID, payload, ev.OccurredAt.UTC().Format(timeLayout)).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build event insert: %v", core.ErrStorage, err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: record event: %v", core.ErrStorage, err)
	}
	return nil
}

// ListEvents implements store.EventRecorder. An empty expenseID lists all events.
func (r *SQLiteRepository) ListEvents(ctx context.Context, expenseID string) ([]store.Event, error) {
	builder := sq.Select("id", "type", "expense_id", "payload", "occurred_at").
		From(eventsTable).
		OrderBy("occurred_at", "id")
	if expenseID != "" {
		builder = builder.Where(sq.Eq{"expense_id": expenseID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build event select: %v", core.ErrStorage, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var events []store.Event
	for rows.Next() {
		var (
			ev         store.Event
			payload    sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.ExpenseID, &payload, &occurredAt); err != nil {
			return nil, fmt.Errorf("%w: scan event: %v", core.ErrStorage, err)
		}
		if payload.Valid {
			ev.Payload = []byte(payload.String)
		}
		if ev.OccurredAt, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("%w: parse occurred_at: %v", core.ErrStorage, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate events: %v", core.ErrStorage, err)
	}
	return events, nil
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		e                    core.Expense
		date, category       string
		createdAt, updatedAt string
	)
	if err := rows.Scan(&e.ID, &date, &e.Amount.Cents, &category, &e.Description, &createdAt, &updatedAt); err != nil {
		return core.Expense{}, err
	}

	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	e.Category = core.Category(category)
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return core.Expense{}, fmt.Errorf("parse created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return core.Expense{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", core.ErrStorage, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
