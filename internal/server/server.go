package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brickfolio/brickfolio/internal/domain"
	"github.com/brickfolio/brickfolio/internal/server/handler"
	"github.com/brickfolio/brickfolio/internal/server/middleware"
	"github.com/brickfolio/brickfolio/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit bounds mutating requests per client IP per window. Zero
	// disables rate limiting even when a limiter is provided.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Wallets      *handler.WalletHandler
	Properties   *handler.PropertyHandler
	Investments  *handler.InvestmentHandler
	Transactions *handler.TransactionHandler
	Portfolio    *handler.PortfolioHandler
}

// Server is the HTTP + WebSocket API in front of the ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, auth, logging, CORS) applied. limiter
// may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Wallet endpoints.
	mux.HandleFunc("GET /api/wallets/{user_id}", handlers.Wallets.GetWallet)
	mux.HandleFunc("POST /api/wallets/{user_id}", handlers.Wallets.EnsureWallet)

	// Property inventory endpoints.
	mux.HandleFunc("POST /api/properties", handlers.Properties.CreateProperty)
	mux.HandleFunc("GET /api/properties", handlers.Properties.ListProperties)
	mux.HandleFunc("GET /api/properties/{id}", handlers.Properties.GetProperty)
	mux.HandleFunc("POST /api/properties/{id}/transition", handlers.Properties.TransitionProperty)
	mux.HandleFunc("PUT /api/properties/{id}/window", handlers.Properties.SetFundingWindow)
	mux.HandleFunc("GET /api/properties/{id}/conservation", handlers.Portfolio.Conservation)

	// Investment position endpoints.
	mux.HandleFunc("POST /api/investments", handlers.Investments.Purchase)
	mux.HandleFunc("GET /api/investments", handlers.Investments.ListInvestments)
	mux.HandleFunc("GET /api/investments/{id}", handlers.Investments.GetInvestment)
	mux.HandleFunc("POST /api/investments/{id}/sell-orders", handlers.Investments.CreateSellOrder)
	mux.HandleFunc("DELETE /api/investments/{id}/sell-orders/{order_id}", handlers.Investments.CancelSellOrder)
	mux.HandleFunc("POST /api/investments/{id}/dividends", handlers.Investments.AddDividend)
	mux.HandleFunc("PUT /api/investments/{id}/value", handlers.Investments.UpdateValue)

	// Journal endpoints.
	mux.HandleFunc("POST /api/transactions/deposits", handlers.Transactions.CreateDeposit)
	mux.HandleFunc("POST /api/transactions/withdrawals", handlers.Transactions.CreateWithdrawal)
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", handlers.Transactions.GetTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/confirm", handlers.Transactions.Confirm)
	mux.HandleFunc("POST /api/transactions/{id}/cancel", handlers.Transactions.Cancel)
	mux.HandleFunc("POST /api/transactions/{id}/refund", handlers.Transactions.Refund)

	// Portfolio aggregates.
	mux.HandleFunc("GET /api/portfolio/summary", handlers.Portfolio.Summary)
	mux.HandleFunc("GET /api/portfolio/distribution", handlers.Portfolio.Distribution)
	mux.HandleFunc("GET /api/portfolio/history", handlers.Portfolio.History)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Actor-ID")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
