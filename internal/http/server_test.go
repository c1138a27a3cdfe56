package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/store"
	"expensetracker/internal/store/memory"
)

var serverNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, repo store.Repository, backend Pinger) *Server {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard})
	n := 0
	svc := services.NewExpenseService(repo, services.Options{
		Logger: logger,
		Now:    func() time.Time { return serverNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("exp-%d", n)
		},
	})
	_ = svc.Load(context.Background())

	srv, err := NewServer(ServerConfig{
		Addr:      ":0",
		Logger:    logger,
		RateLimit: "1000-M",
		Backend:   backend,
	}, svc)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			r.Header.Set("Content-Type", "application/json")
		} else {
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, r)
	return rr
}

func seed(t *testing.T, srv *Server) {
	t.Helper()
	for _, body := range []string{
		`{"date":"2024-01-05","amount":"50.00","category":"Food","description":"Groceries"}`,
		`{"date":"2024-01-10","amount":30,"category":"Food","description":"Lunch with team"}`,
		"date=2024-01-15&amount=20&category=Bills&description=Electricity",
	} {
		rr := do(t, srv, http.MethodPost, "/api/expenses", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New(), pinger{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}

	down := newTestServer(t, memory.New(), pinger{err: errors.New("db gone")})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", "").Code)
}

func TestCreateAndList(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	seed(t, srv)

	rr := do(t, srv, http.MethodGet, "/api/expenses?sort=amount&dir=asc", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []core.Expense
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, []int64{2000, 3000, 5000}, []int64{list[0].Amount.Cents, list[1].Amount.Cents, list[2].Amount.Cents})

	rr = do(t, srv, http.MethodGet, "/api/expenses?category=Food&q=lunch", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Lunch with team", list[0].Description)
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)

	rr := do(t, srv, http.MethodPost, "/api/expenses", "date=2024-02-30&amount=abc&category=Food&description=")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Date must be a valid date (YYYY-MM-DD)", body.Errors["date"])
	assert.Contains(t, body.Errors, "amount")
	assert.Contains(t, body.Errors, "description")

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/expenses", `{"date":`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodPatch, "/api/expenses", "").Code)
}

func TestGetUpdateDelete(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	seed(t, srv)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/expenses/exp-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/expenses/nope", "").Code)

	rr := do(t, srv, http.MethodPut, "/api/expenses/exp-1", `{"date":"2024-01-06","amount":"55","category":"Shopping","description":"Shoes"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var e core.Expense
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	assert.Equal(t, core.CategoryShopping, e.Category)
	assert.Equal(t, int64(5500), e.Amount.Cents)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPut, "/api/expenses/nope", `{"date":"2024-01-06","amount":"1","description":"x"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodPut, "/api/expenses/exp-1", `{"amount":"1"}`).Code)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/expenses/exp-1", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/expenses/exp-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/expenses/exp-1", "").Code)
}

type brokenRepo struct{ memory.Store }

func (b *brokenRepo) Add(context.Context, core.Expense) error {
	return fmt.Errorf("%w: disk full", core.ErrStorage)
}

func TestStorageFailureIs503(t *testing.T) {
	srv := newTestServer(t, &brokenRepo{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/expenses", "date=2024-01-05&amount=5&description=Coffee")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "could not be saved")
}

type unreadableRepo struct{ memory.Store }

func (u *unreadableRepo) GetAll(context.Context) ([]core.Expense, error) {
	return nil, fmt.Errorf("%w: disk I/O", core.ErrStorage)
}

func TestWritesRejectedUntilLoadSucceeds(t *testing.T) {
	srv := newTestServer(t, &unreadableRepo{}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(t, srv, http.MethodPost, "/api/expenses", "date=2024-01-05&amount=5&description=Coffee").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(t, srv, http.MethodPut, "/api/expenses/stored", "date=2024-01-05&amount=5&description=Coffee").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodDelete, "/api/expenses/stored", "").Code)
}

func TestSummaryAndTrend(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	seed(t, srv)

	rr := do(t, srv, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var sum struct {
		TotalSpend      float64 `json:"totalSpend"`
		MonthlyTotal    float64 `json:"monthlyTotal"`
		ExpenseCount    int     `json:"expenseCount"`
		CategorySummary []struct {
			Category   string  `json:"category"`
			Percentage float64 `json:"percentage"`
		} `json:"categorySummary"`
		Recent []core.Expense `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, 100.0, sum.TotalSpend)
	assert.Equal(t, 100.0, sum.MonthlyTotal)
	assert.Equal(t, 3, sum.ExpenseCount)
	require.Len(t, sum.CategorySummary, 2)
	assert.InDelta(t, 80.0, sum.CategorySummary[0].Percentage, 1e-9)
	assert.Len(t, sum.Recent, 3)

	rr = do(t, srv, http.MethodGet, "/api/trend?months=3", "")
	var trend []core.MonthTotal
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trend))
	require.Len(t, trend, 3)
	assert.Equal(t, int64(10000), trend[2].Total.Cents)

	rr = do(t, srv, http.MethodGet, "/api/categories", "")
	assert.Contains(t, rr.Body.String(), `"Transportation"`)
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, memory.New(), nil)
	seed(t, srv)

	rr := do(t, srv, http.MethodGet, "/api/export?format=csv&category=Food&sort=date&dir=asc", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="expenses_2024-01-20.csv"`, rr.Header().Get("Content-Disposition"))
	records, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2024-01-05", "Groceries", "Food", "50.00"}, records[1])

	rr = do(t, srv, http.MethodGet, "/api/export?format=pdf&filename=jan", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="jan.pdf"`)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/export?format=xls", "").Code)

	rr = do(t, srv, http.MethodGet, "/api/export/summary?category=Bills", "")
	var es core.ExportSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &es))
	assert.Equal(t, 1, es.RecordCount)
	assert.Equal(t, int64(2000), es.TotalAmount.Cents)
}

func TestTrustedProxiesKeyRateLimitByForwardedClient(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	svc := services.NewExpenseService(memory.New(), services.Options{Logger: logger})

	_, err := NewServer(ServerConfig{Logger: logger, TrustedProxies: []string{"not-a-cidr"}}, svc)
	require.Error(t, err)

	srv, err := NewServer(ServerConfig{
		Logger:         logger,
		RateLimit:      "1-M",
		TrustedProxies: []string{"203.0.113.0/24"},
	}, svc)
	require.NoError(t, err)

	post := func(client string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader("date=2024-01-05&amount=5&description=Coffee"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.RemoteAddr = "203.0.113.10:4000"
		r.Header.Set("X-Forwarded-For", client)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, r)
		return rr.Code
	}
	assert.Equal(t, http.StatusCreated, post("198.51.100.1"))
	assert.Equal(t, http.StatusCreated, post("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, post("198.51.100.1"))
}

func TestShutdownReleasesRateLimiter(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	svc := services.NewExpenseService(memory.New(), services.Options{Logger: logger})
	srv, err := NewServer(ServerConfig{Logger: logger, RateLimit: "1-M"}, svc)
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))

	body := "date=2024-01-05&amount=5&description=Coffee"
	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodPost, "/api/expenses", body)
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	svc := services.NewExpenseService(memory.New(), services.Options{Logger: logger})
	srv, err := NewServer(ServerConfig{Logger: logger, RateLimit: "1-M"}, svc)
	require.NoError(t, err)

	body := "date=2024-01-05&amount=5&description=Coffee"
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/expenses", body).Code)
	rr := do(t, srv, http.MethodPost, "/api/expenses", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "Rate limit exceeded")
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/expenses", "").Code)

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Contains(t, rr.Body.String(), "rate_limit_hits_total 1")
	assert.Contains(t, rr.Body.String(), "expenses 1")
	assert.Contains(t, rr.Body.String(), "summary_cache_misses_total 0")
}
