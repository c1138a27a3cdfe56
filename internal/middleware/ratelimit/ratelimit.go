// Package ratelimit throttles mutating API requests per client address.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"expensetracker/internal/log"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate in limiter format, e.g. "60-M" for 60 requests per minute.
	Rate            string
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Rate:            "60-M",
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter counts requests per client in an in-process store.
type Limiter struct {
	limiter atomic.Pointer[limiter.Limiter]
	logger  *log.Logger
	hits    int64
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits int64
}

// NewLimiter builds a limiter over the in-memory store.
func NewLimiter(config Config, logger *log.Logger) (*Limiter, error) {
	if config.Rate == "" {
		config.Rate = DefaultConfig().Rate
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	rate, err := limiter.NewRateFromFormatted(config.Rate)
	if err != nil {
		return nil, err
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "expensetracker",
		CleanUpInterval: config.CleanupInterval,
	})
	l := &Limiter{logger: logger.WithComponent(log.ComponentRateLimit)}
	l.limiter.Store(limiter.New(store, rate))
	return l, nil
}

// Close releases the memory store. The store has no stop method; its cleanup
// goroutine ends once the store is unreachable and collected. Requests seen
// after Close pass through unlimited.
func (l *Limiter) Close() {
	if l.limiter.Swap(nil) != nil {
		l.logger.Debug("Rate limiter store released")
	}
}

// GetMetrics returns current rate limiting metrics
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{TotalHits: atomic.LoadInt64(&l.hits)}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Middleware limits POST, PUT, PATCH and DELETE requests. Reads pass through.
// onLimit writes the rejection; nil falls back to a plain 429.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			lim := l.limiter.Load()
			if lim == nil {
				next.ServeHTTP(w, r)
				return
			}

			ip := extractIP(r)
			lctx, err := lim.Get(r.Context(), ip)
			if err != nil {
				// Store failures should not take the API down.
				l.logger.ErrorContext(r.Context(), "Failed to get rate limit context",
					log.FieldClientIP, ip,
					log.FieldError, err.Error())
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				atomic.AddInt64(&l.hits, 1)
				l.logger.WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, ip,
					"limit", lctx.Limit)
				retry := time.Until(time.Unix(lctx.Reset, 0)).Round(time.Second)
				if retry < time.Second {
					retry = time.Second
				}
				h.Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
