package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finance/internal/auth"
	"finance/internal/core"
	"finance/internal/middleware/ratelimit"
	"finance/internal/middleware/security"
	"finance/internal/middleware/trace"
	"finance/internal/ports"
)

// TransactionService is the use-case surface the handlers drive.
type TransactionService interface {
	Create(ctx context.Context, in core.CreateTransactionInput, user core.User) (core.TransactionView, error)
	FindAll(ctx context.Context, user core.User) ([]core.TransactionView, error)
	FindOne(ctx context.Context, id int64, user core.User) (core.TransactionView, error)
	Update(ctx context.Context, id int64, patch core.TransactionPatch, user core.User) (core.TransactionView, error)
	Remove(ctx context.Context, id int64, user core.User) error
}

type CategoryLister interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
}

type Deps struct {
	Transactions TransactionService
	Categories   CategoryLister
	Users        ports.UserReader
	Store        ports.Pinger
	Tokens       *auth.Tokens
	RateLimit    int
}

type Server struct {
	http.Server
	transactions TransactionService
	categories   CategoryLister
	store        ports.Pinger
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// Only /healthz and /readyz are reachable without a bearer token.
func NewServer(addr string, deps Deps) (*Server, error) {
	clientIP, err := security.NewClientIP()
	if err != nil {
		return nil, err
	}

	s := &Server{
		transactions: deps.Transactions,
		categories:   deps.Categories,
		store:        deps.Store,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimit}),
		tracer:       trace.NewMiddleware(clientIP.Extract),
		started:      time.Now(),
	}

	authed := auth.Middleware(deps.Tokens, deps.Users)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /transactions", protect(s.handleCreateTransaction))
	mux.Handle("GET /transactions", protect(s.handleListTransactions))
	mux.Handle("GET /transactions/{id}", protect(s.handleGetTransaction))
	mux.Handle("PATCH /transactions/{id}", protect(s.handleUpdateTransaction))
	mux.Handle("DELETE /transactions/{id}", protect(s.handleDeleteTransaction))
	mux.Handle("GET /categories", protect(s.handleListCategories))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(clientIP.Extract)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops the limiter janitor and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
		if err == nil {
			slog.InfoContext(ctx, "HTTP server stopped",
				"uptime", time.Since(s.started).Round(time.Second),
				"requests_total", s.tracer.Total(),
				"rate_limited", s.limiter.Rejected())
		}
	})
	return err
}
