package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/store/memory"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	args := m.Called(ctx)
	expenses, _ := args.Get(0).([]core.Expense)
	return expenses, args.Error(1)
}

func (m *MockRepository) Add(ctx context.Context, e core.Expense) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockRepository) Update(ctx context.Context, e core.Expense) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockRepository) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) Close() error {
	return m.Called().Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	return m.Called(ctx, ev).Error(0)
}

var (
	testNow   = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	errDiskIO = fmt.Errorf("%w: disk I/O", core.ErrStorage)
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("exp-%d", n)
	}
}

func newService(t *testing.T, repo *memory.Store, pub EventPublisher) (*ExpenseService, *clock) {
	t.Helper()
	c := &clock{t: testNow}
	svc := NewExpenseService(repo, Options{
		Publisher: pub,
		Now:       c.Now,
		NewID:     sequentialIDs(),
	})
	require.NoError(t, svc.Load(context.Background()))
	return svc, c
}

func input(date, amount, category, desc string) core.ExpenseInput {
	return core.ExpenseInput{Date: date, Amount: amount, Category: category, Description: desc}
}

func seedJanuary(t *testing.T, svc *ExpenseService) {
	t.Helper()
	ctx := context.Background()
	for _, in := range []core.ExpenseInput{
		input("2024-01-05", "50.00", "Food", "Groceries"),
		input("2024-01-10", "30.00", "Food", "Lunch with team"),
		input("2024-01-15", "20.00", "Bills", "Electricity"),
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
}

func TestExpenseService_CreateListSummary(t *testing.T) {
	svc, _ := newService(t, memory.New(), nil)
	seedJanuary(t, svc)
	ctx := context.Background()

	list := svc.List(ctx, core.Filter{}, core.DefaultSortOptions())
	require.Len(t, list, 3)
	assert.Equal(t, "Electricity", list[0].Description, "newest date first")

	sum := svc.Summary(ctx, core.Filter{})
	assert.Equal(t, int64(10000), sum.TotalSpend.Cents)
	assert.Equal(t, int64(10000), sum.MonthlyTotal.Cents)
	assert.Equal(t, 3, sum.ExpenseCount)
	require.Len(t, sum.CategorySummary, 2)
	assert.Equal(t, core.CategoryFood, sum.CategorySummary[0].Category)
	assert.InDelta(t, 80.0, sum.CategorySummary[0].Percentage, 1e-9)

	food := svc.Summary(ctx, core.Filter{Category: "Food"})
	assert.Equal(t, int64(8000), food.TotalSpend.Cents)
}

func TestExpenseService_CreateValidation(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetAll", mock.Anything).Return([]core.Expense{}, nil)
	svc := NewExpenseService(repo, Options{Now: func() time.Time { return testNow }})
	require.NoError(t, svc.Load(context.Background()))

	_, err := svc.Create(context.Background(), input("2024-13-01", "-1", "Food", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)

	var verrs core.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "date")
	assert.Contains(t, verrs, "amount")
	assert.Contains(t, verrs, "description")

	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	assert.Equal(t, 0, svc.Count())
}

func TestExpenseService_StorageFailureLeavesMirrorUnchanged(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetAll", mock.Anything).Return([]core.Expense{}, nil)
	repo.On("Add", mock.Anything, mock.Anything).Return(errDiskIO)
	pub := new(MockPublisher)

	svc := NewExpenseService(repo, Options{Publisher: pub})
	require.NoError(t, svc.Load(context.Background()))

	_, err := svc.Create(context.Background(), input("2024-01-05", "5", "Food", "Coffee"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Equal(t, 0, svc.Count())
	pub.AssertNotCalled(t, "PublishExpenseEvent", mock.Anything, mock.Anything)
}

func TestExpenseService_LoadFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetAll", mock.Anything).Return(nil, errDiskIO)

	svc := NewExpenseService(repo, Options{})
	err := svc.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, svc.Ready(context.Background()), core.ErrStorage)
	assert.Empty(t, svc.List(context.Background(), core.Filter{}, core.DefaultSortOptions()))
}

func TestExpenseService_MutationsRejectedWhileLoadFails(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetAll", mock.Anything).Return(nil, errDiskIO)
	pub := new(MockPublisher)

	svc := NewExpenseService(repo, Options{Publisher: pub})
	require.Error(t, svc.Load(context.Background()))
	ctx := context.Background()

	_, err := svc.Create(ctx, input("2024-01-05", "5", "Food", "Coffee"))
	assert.ErrorIs(t, err, core.ErrStorage)

	_, found, err := svc.Update(ctx, "old", input("2024-01-05", "5", "Food", "Coffee"))
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.False(t, found)

	deleted, err := svc.Delete(ctx, "old")
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.False(t, deleted)

	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishExpenseEvent", mock.Anything, mock.Anything)
}

// flakyStore fails GetAll a fixed number of times before delegating.
type flakyStore struct {
	*memory.Store
	failures int
}

func (f *flakyStore) GetAll(ctx context.Context) ([]core.Expense, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errDiskIO
	}
	return f.Store.GetAll(ctx)
}

func TestExpenseService_RecoversAfterFailedLoad(t *testing.T) {
	date, err := core.ParseDate("2024-01-02")
	require.NoError(t, err)
	stored := core.Expense{
		ID:          "old",
		Date:        date,
		Amount:      core.Money{Cents: 5000},
		Category:    core.CategoryBills,
		Description: "Rent share",
		CreatedAt:   testNow.Add(-time.Hour),
		UpdatedAt:   testNow.Add(-time.Hour),
	}
	repo := &flakyStore{Store: memory.New(stored), failures: 1}

	svc := NewExpenseService(repo, Options{Now: func() time.Time { return testNow }, NewID: sequentialIDs()})
	ctx := context.Background()
	require.Error(t, svc.Load(ctx))
	assert.Equal(t, 0, svc.Count())

	_, err = svc.Create(ctx, input("2024-01-10", "10", "Food", "Lunch"))
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Count(), "stored record is reloaded before the write")
	require.NoError(t, svc.Ready(ctx))

	updated, found, err := svc.Update(ctx, "old", input("2024-01-02", "60", "Bills", "Rent share"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(6000), updated.Amount.Cents)

	durable, err := repo.Store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, durable, 2)
	assert.Equal(t, int64(7000), svc.Summary(ctx, core.Filter{}).TotalSpend.Cents)
}

func TestExpenseService_ReadyRetriesLoad(t *testing.T) {
	repo := &flakyStore{Store: memory.New(), failures: 1}
	svc := NewExpenseService(repo, Options{})
	ctx := context.Background()

	require.Error(t, svc.Load(ctx))
	assert.NoError(t, svc.Ready(ctx))
	assert.NoError(t, svc.Ready(ctx))
}

func TestExpenseService_Update(t *testing.T) {
	svc, clk := newService(t, memory.New(), nil)
	seedJanuary(t, svc)
	ctx := context.Background()

	original, err := svc.Get(ctx, "exp-2")
	require.NoError(t, err)

	clk.Set(testNow.Add(time.Hour))
	updated, found, err := svc.Update(ctx, "exp-2", input("2024-01-11", "35.5", "Entertainment", "  Cinema  "))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, "Cinema", updated.Description)
	assert.Equal(t, int64(3550), updated.Amount.Cents)

	got, err := svc.Get(ctx, "exp-2")
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	t.Run("unknown id is a no-op", func(t *testing.T) {
		_, found, err := svc.Update(ctx, "missing", input("2024-01-11", "1", "Food", "x"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, 3, svc.Count())
	})

	t.Run("clock behind createdAt", func(t *testing.T) {
		clk.Set(testNow.Add(-24 * time.Hour))
		e, found, err := svc.Update(ctx, "exp-1", input("2024-01-05", "50", "Food", "Groceries"))
		require.NoError(t, err)
		require.True(t, found)
		assert.False(t, e.UpdatedAt.Before(e.CreatedAt))
	})
}

func TestExpenseService_Delete(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishExpenseEvent", mock.Anything, mock.Anything).Return(nil)

	svc, _ := newService(t, memory.New(), pub)
	seedJanuary(t, svc)
	ctx := context.Background()

	ok, err := svc.Delete(ctx, "exp-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, svc.Count())
	_, err = svc.Get(ctx, "exp-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	ok, err = svc.Delete(ctx, "exp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	pub.AssertNumberOfCalls(t, "PublishExpenseEvent", 4)
	pub.AssertCalled(t, "PublishExpenseEvent", mock.Anything, mock.MatchedBy(func(ev *amqp.ExpenseEvent) bool {
		return ev.Type == amqp.EventExpenseDeleted && ev.ExpenseID == "exp-1"
	}))
}

func TestExpenseService_PublishFailureIsNotReturned(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishExpenseEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc, _ := newService(t, memory.New(), pub)
	e, err := svc.Create(context.Background(), input("2024-01-05", "5", "Food", "Coffee"))
	require.NoError(t, err)
	assert.Equal(t, "exp-1", e.ID)
	assert.Equal(t, 1, svc.Count())
}

func TestExpenseService_SummaryCacheInvalidatedOnMutation(t *testing.T) {
	svc, _ := newService(t, memory.New(), nil)
	seedJanuary(t, svc)
	ctx := context.Background()

	first := svc.Summary(ctx, core.Filter{})
	again := svc.Summary(ctx, core.Filter{})
	assert.Equal(t, first, again)

	_, err := svc.Create(ctx, input("2024-01-18", "10", "Shopping", "Socks"))
	require.NoError(t, err)

	after := svc.Summary(ctx, core.Filter{})
	assert.Equal(t, int64(11000), after.TotalSpend.Cents)
	assert.Equal(t, 4, after.ExpenseCount)

	stats := svc.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestExpenseService_TrendRecentExport(t *testing.T) {
	svc, clk := newService(t, memory.New(), nil)
	ctx := context.Background()
	for i, in := range []core.ExpenseInput{
		input("2023-12-20", "40", "Bills", "Gas"),
		input("2024-01-05", "50", "Food", "Groceries"),
		input("2024-01-15", "20", "Bills", "Electricity"),
	} {
		clk.Set(testNow.Add(time.Duration(i) * time.Minute))
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	trend := svc.Trend(ctx, core.Filter{}, 2)
	require.Len(t, trend, 2)
	assert.Equal(t, int64(4000), trend[0].Total.Cents)
	assert.Equal(t, int64(7000), trend[1].Total.Cents)

	recent := svc.Recent(ctx, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "Electricity", recent[0].Description)

	es := svc.ExportSummary(ctx, core.Filter{Category: "Bills"})
	assert.Equal(t, 2, es.RecordCount)
	assert.Equal(t, int64(6000), es.TotalAmount.Cents)
	require.NotNil(t, es.Earliest)
	assert.Equal(t, "2023-12-20", es.Earliest.String())
}

func TestExpenseService_ConcurrentCreates(t *testing.T) {
	svc := NewExpenseService(memory.New(), Options{})
	require.NoError(t, svc.Load(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), input("2024-01-05", "1", "Food", "Snack"))
			assert.NoError(t, err)
			_ = svc.Summary(context.Background(), core.Filter{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, svc.Count())
	assert.Equal(t, int64(2000), svc.Summary(context.Background(), core.Filter{}).TotalSpend.Cents)
}
