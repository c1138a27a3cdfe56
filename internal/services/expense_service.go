package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/store"
)

// EventPublisher announces expense changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// Options tune an ExpenseService. Zero values get defaults.
type Options struct {
	Publisher    EventPublisher
	Logger       *log.Logger
	CacheSize    int
	CacheTTL     time.Duration
	CacheManager *cache.Manager
	Now          func() time.Time
	NewID        func() string
}

// ExpenseService owns the in-memory view of the expense collection. Every
// mutation is persisted first and mirrored only once the repository accepted it.
type ExpenseService struct {
	repo      store.Repository
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger

	mu       sync.RWMutex
	expenses []core.Expense
	loadErr  error

	summaries  *cache.LRUCache[core.Summary]
	generation uint64
	group      singleflight.Group

	now   func() time.Time
	newID func() string
}

func NewExpenseService(repo store.Repository, opts Options) *ExpenseService {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	logger := opts.Logger.WithComponent(log.ComponentExpense)
	s := &ExpenseService{
		repo:      repo,
		publisher: opts.Publisher,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		expenses:  []core.Expense{},
		summaries: cache.NewLRUCache[core.Summary](opts.CacheSize, opts.CacheTTL),
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if opts.CacheManager != nil {
		opts.CacheManager.Register(s.summaries)
	}
	return s
}

// Load replaces the mirror with the repository contents. On failure the
// mirror is left empty and the error is returned for the caller to surface.
func (s *ExpenseService) Load(ctx context.Context) error {
	expenses, err := s.repo.GetAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()

	if err != nil {
		s.expenses = []core.Expense{}
		s.loadErr = err
		s.events.LogError(ctx, "Failed to load expenses", err, log.OpLoad,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		return fmt.Errorf("load expenses: %w", err)
	}

	s.expenses = append(make([]core.Expense, 0, len(expenses)), expenses...)
	s.loadErr = nil
	s.logger.InfoContext(ctx, "Expenses loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldCount, len(expenses))
	return nil
}

// Ready retries a failed Load and reports the outcome, nil once the mirror
// holds the repository contents.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.ensureLoaded(ctx)
}

// ensureLoaded reloads the mirror when the last Load failed. Mutations call
// it first so they never run against a mirror that is missing stored records.
func (s *ExpenseService) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	failed := s.loadErr != nil
	s.mu.RUnlock()
	if !failed {
		return nil
	}

	if err := s.Load(ctx); err != nil {
		if errors.Is(err, core.ErrStorage) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	return nil
}

// snapshot returns a copy of the mirror.
func (s *ExpenseService) snapshot() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

// List returns the expenses matching f, ordered by opts.
func (s *ExpenseService) List(ctx context.Context, f core.Filter, opts core.SortOptions) []core.Expense {
	return core.SortExpenses(core.ApplyFilter(s.snapshot(), f), opts)
}

func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.expenses[i], nil
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *ExpenseService) indexLocked(id string) int {
	for i := range s.expenses {
		if s.expenses[i].ID == id {
			return i
		}
	}
	return -1
}

// Create validates in, persists the new expense and appends it to the mirror.
// Validation failures are returned as core.ValidationErrors.
func (s *ExpenseService) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	v, verrs := core.ValidateInput(in)
	if verrs != nil {
		return core.Expense{}, verrs
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Expense{}, err
	}

	now := s.now().UTC()
	e := core.Expense{
		ID:          s.newID(),
		Date:        v.Date,
		Amount:      v.Amount,
		Category:    v.Category,
		Description: v.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	if err := s.repo.Add(ctx, e); err != nil {
		s.mu.Unlock()
		s.events.LogError(ctx, "Failed to save expense", err, log.OpCreate, nil)
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.expenses = append(s.expenses, e)
	s.invalidateLocked()
	s.mu.Unlock()

	s.events.LogExpenseChange(ctx, log.OpCreate, e.ID, e.Amount.Cents, e.Category.String())
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseCreated, e))
	return e, nil
}

// Update replaces the editable fields of the expense with the given id. An
// unknown id is a no-op reported through found=false with a nil error.
func (s *ExpenseService) Update(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, bool, error) {
	v, verrs := core.ValidateInput(in)
	if verrs != nil {
		return core.Expense{}, false, verrs
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return core.Expense{}, false, err
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Update of unknown expense ignored", log.FieldExpenseID, id)
		return core.Expense{}, false, nil
	}

	e := s.expenses[i]
	e.Date = v.Date
	e.Amount = v.Amount
	e.Category = v.Category
	e.Description = v.Description
	e.UpdatedAt = s.now().UTC()
	if e.UpdatedAt.Before(e.CreatedAt) {
		e.UpdatedAt = e.CreatedAt
	}

	if err := s.repo.Update(ctx, e); err != nil {
		s.mu.Unlock()
		if errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Expense missing from repository, update ignored", log.FieldExpenseID, id)
			return core.Expense{}, false, nil
		}
		s.events.LogError(ctx, "Failed to update expense", err, log.OpUpdate,
			log.NewFields().WithExpense(id, e.Amount.Cents, e.Category.String()))
		return core.Expense{}, false, fmt.Errorf("update expense: %w", err)
	}
	s.expenses[i] = e
	s.invalidateLocked()
	s.mu.Unlock()

	s.events.LogExpenseChange(ctx, log.OpUpdate, e.ID, e.Amount.Cents, e.Category.String())
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseUpdated, e))
	return e, true, nil
}

// Delete removes the expense with the given id. An unknown id is a no-op
// reported as false with a nil error.
func (s *ExpenseService) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	e := s.expenses[i]

	if err := s.repo.Remove(ctx, id); err != nil {
		s.mu.Unlock()
		if errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Expense missing from repository, delete ignored", log.FieldExpenseID, id)
			return false, nil
		}
		s.events.LogError(ctx, "Failed to delete expense", err, log.OpDelete,
			log.NewFields().WithExpense(id, e.Amount.Cents, e.Category.String()))
		return false, fmt.Errorf("delete expense: %w", err)
	}
	s.expenses = append(s.expenses[:i:i], s.expenses[i+1:]...)
	s.invalidateLocked()
	s.mu.Unlock()

	s.events.LogExpenseChange(ctx, log.OpDelete, e.ID, e.Amount.Cents, e.Category.String())
	s.publish(ctx, amqp.NewDeletedEvent(id))
	return true, nil
}

// publish is best-effort: failures are logged and never reach the caller.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ExpenseID,
			log.FieldError, err.Error())
	}
}

func (s *ExpenseService) invalidateLocked() {
	s.generation++
	s.summaries.Purge()
}

// Summary aggregates the expenses matching f. Results are cached per filter
// until the next mutation; concurrent misses for one key compute once.
func (s *ExpenseService) Summary(ctx context.Context, f core.Filter) core.Summary {
	now := s.now()

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()
	key := strconv.FormatUint(gen, 10) + "|" + now.Format("2006-01") + "|" + f.Key()

	if sum, ok := s.summaries.Get(key); ok {
		return sum
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		expenses := make([]core.Expense, len(s.expenses))
		copy(expenses, s.expenses)
		stale := s.generation != gen
		s.mu.RUnlock()

		sum := core.Summarize(core.ApplyFilter(expenses, f), now)
		// A mutation since the key was built means sum may be newer than key.
		if !stale {
			s.summaries.Set(key, sum)
		}
		return sum, nil
	})
	s.logger.DebugContext(ctx, "Summary computed", "filter", f.Key())
	return v.(core.Summary)
}

// Trend buckets the expenses matching f into the last months calendar months.
func (s *ExpenseService) Trend(ctx context.Context, f core.Filter, months int) []core.MonthTotal {
	return core.MonthlyTrend(core.ApplyFilter(s.snapshot(), f), s.now(), months)
}

// Recent returns the n most recently created expenses.
func (s *ExpenseService) Recent(ctx context.Context, n int) []core.Expense {
	return core.RecentExpenses(s.snapshot(), n)
}

// ExportSummary describes what an export with filter f would contain.
func (s *ExpenseService) ExportSummary(ctx context.Context, f core.Filter) core.ExportSummary {
	return core.SummarizeExport(core.ApplyFilter(s.snapshot(), f))
}

// Now returns the service clock, used to stamp exports.
func (s *ExpenseService) Now() time.Time {
	return s.now()
}

// CacheStats reports the summary cache counters.
func (s *ExpenseService) CacheStats() cache.Stats {
	return s.summaries.Stats()
}

// Count returns the number of mirrored expenses.
func (s *ExpenseService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expenses)
}
