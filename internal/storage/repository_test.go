package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(id string, cents int64, cat core.Category) core.Expense {
	ts := time.Date(2024, 1, 15, 8, 30, 0, 123000000, time.UTC)
	return core.Expense{
		ID:          id,
		Date:        core.NewDate(2024, 1, 15),
		Amount:      core.Money{Cents: cents},
		Category:    cat,
		Description: "item " + id,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func TestSQLiteRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	a := testExpense("a", 1250, core.CategoryFood)
	b := testExpense("b", 999, core.CategoryBills)
	require.NoError(t, repo.Add(ctx, a))
	require.NoError(t, repo.Add(ctx, b))
	assert.ErrorIs(t, repo.Add(ctx, a), core.ErrStorage, "duplicate id")

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.True(t, a.CreatedAt.Equal(all[0].CreatedAt))
	assert.Equal(t, a.Date.String(), all[0].Date.String())
	assert.Equal(t, a.Amount, all[0].Amount)

	b.Description = "water bill"
	b.Amount = core.Money{Cents: 4500}
	b.UpdatedAt = b.UpdatedAt.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, b))
	assert.ErrorIs(t, repo.Update(ctx, testExpense("missing", 1, core.CategoryOther)), core.ErrNotFound)

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "water bill", all[1].Description)
	assert.Equal(t, int64(4500), all[1].Amount.Cents)
	assert.True(t, all[1].UpdatedAt.After(all[1].CreatedAt))

	require.NoError(t, repo.Remove(ctx, "a"))
	assert.ErrorIs(t, repo.Remove(ctx, "a"), core.ErrNotFound)

	all, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestSQLiteRepositoryRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	bad := testExpense("x", 0, core.CategoryFood)
	assert.ErrorIs(t, repo.Add(context.Background(), bad), core.ErrInvalidAmount)
}

func TestSQLiteRepositoryEvents(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	at := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	created := store.Event{ID: "e1", Type: "expense.created", ExpenseID: "a", Payload: []byte(`{"id":"a"}`), OccurredAt: at}
	deleted := store.Event{ID: "e2", Type: "expense.deleted", ExpenseID: "a", OccurredAt: at.Add(time.Minute)}
	other := store.Event{ID: "e3", Type: "expense.created", ExpenseID: "b", OccurredAt: at}

	require.NoError(t, repo.RecordEvent(ctx, created))
	require.NoError(t, repo.RecordEvent(ctx, deleted))
	require.NoError(t, repo.RecordEvent(ctx, other))
	require.NoError(t, repo.RecordEvent(ctx, created), "redelivery is ignored")

	events, err := repo.ListEvents(ctx, "a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.JSONEq(t, `{"id":"a"}`, string(events[0].Payload))
	assert.Equal(t, "e2", events[1].ID)
	assert.Nil(t, events[1].Payload)
	assert.True(t, events[1].OccurredAt.Equal(at.Add(time.Minute)))

	all, err := repo.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	for i := 0; i < 2; i++ {
		version, err := RunMigrations(path)
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
	}
}
