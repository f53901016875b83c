package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"moneymanager/internal/cache"
	"moneymanager/internal/core"
	"moneymanager/internal/currency"
	"moneymanager/internal/ledger"
	"moneymanager/internal/log"
	"moneymanager/internal/middleware/ratelimit"
	"moneymanager/internal/middleware/security"
	"moneymanager/internal/middleware/trace"
	"moneymanager/internal/services"
	"moneymanager/internal/settings"
)

// RateRefresher is the live exchange-rate table.
type RateRefresher interface {
	Current() currency.Table
	Refresh(ctx context.Context) (currency.Table, error)
}

// Dependencies are the collaborators the API serves.
type Dependencies struct {
	Ledger      *services.LedgerService
	Rates       RateRefresher
	Preferences *settings.Store
	Password    *settings.PasswordGate
	Logger      *log.Logger

	// Secondary is the non-USD display currency code.
	Secondary          string
	RateLimitPerMinute int
	BackupTimeout      time.Duration
	Now                func() time.Time
}

type Server struct {
	http.Server
	ledger      *services.LedgerService
	rates       RateRefresher
	prefs       *settings.Store
	password    *settings.PasswordGate
	secondary   string
	backupLimit time.Duration
	now         func() time.Time

	detector     *security.Detector
	tracer       *trace.Middleware
	rateLimiter  *ratelimit.Limiter
	summaryCache *cache.LRUCache[ledger.MonthSummary]
	caches       *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.BackupTimeout <= 0 {
		deps.BackupTimeout = 30 * time.Second
	}
	if deps.Secondary == "" {
		deps.Secondary = currency.DefaultSecondary
	}
	s := &Server{
		ledger:       deps.Ledger,
		rates:        deps.Rates,
		prefs:        deps.Preferences,
		password:     deps.Password,
		secondary:    deps.Secondary,
		backupLimit:  deps.BackupTimeout,
		now:          deps.Now,
		detector:     security.NewDetector(deps.Logger),
		summaryCache: cache.NewLRUCache[ledger.MonthSummary](100, 5*time.Minute),
		caches:       cache.NewManager(deps.Logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger)
	limitCfg := ratelimit.DefaultConfig()
	limitCfg.RequestsPerMinute = deps.RateLimitPerMinute
	s.rateLimiter = ratelimit.NewLimiter(limitCfg)

	s.caches.Register(s.summaryCache)
	s.caches.StartCleanup(10 * time.Minute)

	// Any change to a month invalidates its cached summaries.
	s.ledger.OnChange(func(month core.MonthKey) {
		s.summaryCache.DeletePrefix(string(month) + "|")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/months", s.handleListMonths)
	mux.HandleFunc("POST /api/months", s.handleCreateMonth)
	mux.HandleFunc("GET /api/months/{month}", s.handleGetMonth)
	mux.HandleFunc("GET /api/months/{month}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/months/{month}/navigate", s.handleNavigate)

	mux.HandleFunc("POST /api/months/{month}/transactions", s.handleAddTransaction)
	mux.HandleFunc("DELETE /api/months/{month}/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("PUT /api/months/{month}/balances", s.handleUpdateBalances)
	mux.HandleFunc("POST /api/months/{month}/notes/{bucket}", s.handleAddNote)
	mux.HandleFunc("DELETE /api/months/{month}/notes/{bucket}/{id}", s.handleDeleteNote)

	mux.HandleFunc("GET /api/rates", s.handleRates)
	mux.HandleFunc("POST /api/rates/refresh", s.handleRefreshRates)

	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences", s.handleUpdatePreferences)
	mux.HandleFunc("GET /api/password", s.handlePasswordStatus)
	mux.HandleFunc("PUT /api/password", s.handleSetPassword)
	mux.HandleFunc("DELETE /api/password", s.handleClearPassword)
	mux.HandleFunc("POST /api/unlock", s.handleUnlock)

	mux.HandleFunc("POST /api/sync/export", s.handleExport)
	mux.HandleFunc("POST /api/sync/import", s.handleImport)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})

	var handler http.Handler = mux
	handler = limited(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(deps.Logger)(handler)

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   deps.BackupTimeout + 10*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

// fail logs server-side failures and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	if StatusFor(err) >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path,
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldError, err)
	}
	resp.Write(w)
}

// parseBody parses the request body or writes a 400.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return nil, false
	}
	return p, true
}
