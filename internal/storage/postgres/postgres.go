// Package postgres is the PostgreSQL Repository built on pgxpool.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	psql           = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	expenseColumns = []string{"id", "date", "amount_cents", "category", "description", "created_at", "updated_at"}
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Repository = (*Repository)(nil)

// New connects to url, applies migrations and returns the repository.
func New(ctx context.Context, url string) (*Repository, error) {
	if err := RunMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Database connection established",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database)

	return &Repository{pool: pool}, nil
}

// RunMigrations applies the embedded schema through a dedicated connection.
func RunMigrations(url string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) GetAll(ctx context.Context) ([]core.Expense, error) {
	query, args, err := psql.Select(expenseColumns...).
		From("expenses").
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build select: %v", core.ErrStorage, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list expenses: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e        core.Expense
			date     time.Time
			category string
		)
		if err := rows.Scan(&e.ID, &date, &e.Amount.Cents, &category, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan expense: %v", core.ErrStorage, err)
		}
		e.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
		e.Category = core.Category(category)
		e.CreatedAt = e.CreatedAt.UTC()
		e.UpdatedAt = e.UpdatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate expenses: %v", core.ErrStorage, err)
	}
	return expenses, nil
}

func (r *Repository) Add(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query, args, err := psql.Insert("expenses").
		Columns(expenseColumns...).
		Values(e.ID, e.Date.Time, e.Amount.Cents, string(e.Category), e.Description, e.CreatedAt, e.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build insert: %v", core.ErrStorage, err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insert expense: %v", core.ErrStorage, err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query, args, err := psql.Update("expenses").
		Set("date", e.Date.Time).
		Set("amount_cents", e.Amount.Cents).
		Set("category", string(e.Category)).
		Set("description", e.Description).
		Set("updated_at", e.UpdatedAt).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build update: %v", core.ErrStorage, err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	return affected(tag, err, "update expense")
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	query, args, err := psql.Delete("expenses").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build delete: %v", core.ErrStorage, err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	return affected(tag, err, "delete expense")
}

func affected(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrStorage, op, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
