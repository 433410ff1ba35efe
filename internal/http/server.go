// Package http serves the JSON API over the ledger, statements and sync jobs.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
)

type LedgerService interface {
	Create(ctx context.Context, kind core.Kind, tx core.Transaction) (core.Transaction, error)
	ExpenseReport(ctx context.Context, p core.Period) (core.ExpenseReport, error)
	IncomeReport(ctx context.Context, p core.Period) (core.IncomeReport, error)
}

type StatementService interface {
	Ingest(ctx context.Context, raw []byte, cardType string, period core.Period) (core.Statement, error)
	Summarize(ctx context.Context, p core.Period, cardType, holder string) (core.StatementSummary, error)
	ListAvailable(ctx context.Context, p core.Period) (map[string][]string, error)
}

type SyncService interface {
	Run(ctx context.Context, feed sheets.Feed) services.SyncResult
	RunAll(ctx context.Context) []services.SyncResult
}

type ResumeService interface {
	Import(ctx context.Context) (services.ResumeImportReport, error)
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the routes. Resumes may be nil when no
// parsing service is configured.
type Deps struct {
	Ledger     LedgerService
	Statements StatementService
	Sync       SyncService
	Resumes    ResumeService
	DB         Pinger
}

type Options struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	deps            Deps
	logger          *applog.Logger
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	started         time.Time
	now             func() time.Time
	shutdownOnce    sync.Once
}

// syncRoutes maps the legacy sync paths to their feeds.
var syncRoutes = map[string]sheets.Feed{
	"/syncHistoricExpenses":     sheets.FeedHistoricExpenses,
	"/syncCurrentMonthExpenses": sheets.FeedCurrentMonthExpenses,
	"/syncHistoricIncome":       sheets.FeedHistoricIncomes,
	"/syncCurrentMonthIncome":   sheets.FeedCurrentMonthIncomes,
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, deps Deps) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:            deps,
		logger:          logger,
		rateLimiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		traceMiddleware: trace.NewMiddleware(extractClientIP, logger),
		started:         time.Now(),
		now:             time.Now,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("POST /expenses", s.limited(s.handleCreate(core.KindExpense)))
	mux.Handle("POST /incomes", s.limited(s.handleCreate(core.KindIncome)))
	mux.HandleFunc("GET /expenses/{year}/{month}", s.handleExpenseReport)
	mux.HandleFunc("GET /incomes/{year}/{month}", s.handleIncomeReport)

	mux.Handle("POST /loadCardResume", s.limited(http.HandlerFunc(s.handleLoadCardResume)))
	mux.HandleFunc("GET /getResumeExpenses/{year}/{month}", s.handleResumeExpenses)
	mux.HandleFunc("GET /getResumeExpenses/{year}/{month}/{card_type}", s.handleResumeExpenses)
	mux.HandleFunc("GET /getResumeExpenses/{year}/{month}/{card_type}/{holder}", s.handleResumeExpenses)
	mux.HandleFunc("GET /getAvailableResumes/{year}/{month}", s.handleAvailableResumes)

	for path, feed := range syncRoutes {
		mux.Handle("GET "+path, s.limited(s.handleSync(feed)))
	}
	mux.Handle("GET /syncAll", s.limited(http.HandlerFunc(s.handleSyncAll)))
	mux.Handle("GET /syncResumes", s.limited(http.HandlerFunc(s.handleSyncResumes)))

	s.Handler = s.traceMiddleware.Middleware(
		trace.LoggerMiddleware(logger)(
			securityHeaders(mux)))
	return s
}

// limited applies the per-client rate limit to writes and sync triggers.
func (s *Server) limited(h http.Handler) http.Handler {
	return s.rateLimiter.Middleware(extractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, extractClientIP(r), applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(h)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
