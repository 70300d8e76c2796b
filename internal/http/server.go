// Package http exposes the REST API: recurring-definition CRUD, the manual
// processing trigger, and account/category/transaction reads.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Store is the slice of the repository the handlers read from directly.
// Definition writes go through services.DefinitionService instead.
type Store interface {
	CreateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)

	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, accountID string) ([]core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	Summarize(ctx context.Context, accountID string, year, month int) (storage.AccountSummary, error)

	ListNotifications(ctx context.Context, accountID string) ([]core.Notification, error)
}

type Server struct {
	http.Server

	store       Store
	definitions *services.DefinitionService
	processor   *services.RecurringProcessor

	limiter      *rateLimiter
	summaryCache *cache.LRU[storage.AccountSummary]

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store Store, definitions *services.DefinitionService, processor *services.RecurringProcessor) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:        store,
		definitions:  definitions,
		processor:    processor,
		limiter:      newRateLimiter(60, time.Minute),
		summaryCache: cache.NewLRU[storage.AccountSummary](100, 5*time.Minute),
		stopCleanup:  make(chan struct{}),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withRequestLog(s.withSecurityHeaders(s.withRateLimit(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleHealth)

	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{id}/summary", s.handleAccountSummary)
	mux.HandleFunc("GET /api/accounts/{id}/notifications", s.handleListNotifications)

	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)

	mux.HandleFunc("POST /api/recurring-transactions", s.handleCreateDefinition)
	mux.HandleFunc("GET /api/recurring-transactions", s.handleListDefinitions)
	mux.HandleFunc("GET /api/recurring-transactions/{id}", s.handleGetDefinition)
	mux.HandleFunc("PUT /api/recurring-transactions/{id}", s.handleUpdateDefinition)
	mux.HandleFunc("DELETE /api/recurring-transactions/{id}", s.handleDeleteDefinition)
	mux.HandleFunc("POST /api/recurring-transactions/process", s.handleProcessDue)

	go s.cleanupLoop()

	return s
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.summaryCache.CleanExpired(); n > 0 {
				slog.Debug("Summary cache cleanup", "removed", n)
			}
			s.limiter.cleanupStale()
		case <-s.stopCleanup:
			return
		}
	}
}

// Shutdown stops the background cleanup and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.stopCleanup)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// rateLimiter is a fixed-window per-IP limiter.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientWindow
}

type clientWindow struct {
	start    time.Time
	requests int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
	}
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cw, ok := rl.clients[clientIP]
	if !ok || now.Sub(cw.start) > rl.window {
		rl.clients[clientIP] = &clientWindow{start: now, requests: 1}
		return true
	}
	cw.requests++
	return cw.requests <= rl.limit
}

func (rl *rateLimiter) cleanupStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, cw := range rl.clients {
		if cw.start.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !s.limiter.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
