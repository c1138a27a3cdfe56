package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

const (
	defaultTrendMonths = 6
	maxTrendMonths     = 24
	recentCount        = 5
	maxBodyBytes       = 64 << 10
)

// Pinger checks a backing dependency for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig wires the server to its collaborators.
type ServerConfig struct {
	Addr        string
	Logger      *log.Logger
	RateLimit   string
	TrendMonths int
	// Backend is pinged by /readyz when set.
	Backend Pinger
	// TrustedProxies are extra CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc         *services.ExpenseService
	logger      *log.Logger
	backend     Pinger
	trendMonths int
	started     time.Time

	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg ServerConfig, svc *services.ExpenseService) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.TrendMonths < 1 || cfg.TrendMonths > maxTrendMonths {
		cfg.TrendMonths = defaultTrendMonths
	}

	detector := security.NewDetector()
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{Rate: cfg.RateLimit}, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	s := &Server{
		svc:              svc,
		logger:           cfg.Logger.WithComponent(log.ComponentHTTP),
		backend:          cfg.Backend,
		trendMonths:      cfg.TrendMonths,
		started:          time.Now(),
		traceMiddleware:  trace.NewMiddleware(cfg.Logger, detector.ExtractClientIP),
		securityDetector: detector,
		rateLimiter:      limiter,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/export/summary", s.handleExportSummary)

	var handler http.Handler = mux
	handler = limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().
			Status(http.StatusTooManyRequests).
			Error("Rate limit exceeded. Please try again later.").
			Write(w)
	})(handler)
	handler = detector.Middleware(cfg.Logger)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown drains in-flight requests, then releases the rate limiter store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	err := s.Server.Shutdown(ctx)
	s.rateLimiter.Close()
	return err
}
