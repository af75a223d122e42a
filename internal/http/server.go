// Package http exposes the expense ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"splitledger/internal/cache"
	applog "splitledger/internal/log"
	"splitledger/internal/middleware/ratelimit"
	"splitledger/internal/middleware/security"
	"splitledger/internal/middleware/trace"
	"splitledger/internal/services"
)

type Server struct {
	http.Server

	participants *services.ParticipantService
	expenses     *services.ExpenseService
	balances     *services.BalanceService

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	// balanceCache holds the rendered balance report. It is invalidated on
	// every recorded expense and expires on its own; the ledger stays the
	// only source of truth.
	balanceCache *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, participants *services.ParticipantService, expenses *services.ExpenseService, balances *services.BalanceService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		participants: participants,
		expenses:     expenses,
		balances:     balances,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		balanceCache: cache.NewLRUCache[[]byte](16, 30*time.Second),
		cacheManager: cache.NewManager(),
		started:      time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.cacheManager.Register(s.balanceCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("POST /user", s.rateLimited(s.handleRegisterParticipant))
	mux.HandleFunc("GET /user/{id}", s.handleGetParticipant)
	mux.HandleFunc("POST /expense", s.rateLimited(s.handleRecordExpense))
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("GET /expense/user/{id}", s.handleListExpensesForParticipant)
	mux.HandleFunc("GET /balances", s.handleBalances)
	mux.HandleFunc("GET /balance_sheet", s.handleBalanceSheet)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /statusz", s.handleStatus)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.tracer.Middleware(headers.Middleware(s.detector.Middleware(applog.Middleware(logger)(mux)))),
	}

	return s
}

// TrustProxies extends the set of proxy networks whose forwarded headers
// are honored when resolving client IPs.
func (s *Server) TrustProxies(cidrs []string) error {
	for _, cidr := range cidrs {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return err
		}
	}
	return nil
}

// rateLimited applies the per-IP limiter to mutating routes.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, nil)(next)
	return limited.ServeHTTP
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
