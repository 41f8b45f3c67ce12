package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/brickfolio/brickfolio/internal/domain"
	"github.com/brickfolio/brickfolio/internal/ledger"
	"github.com/brickfolio/brickfolio/internal/notify"
	"github.com/brickfolio/brickfolio/internal/server"
	"github.com/brickfolio/brickfolio/internal/server/handler"
	"github.com/brickfolio/brickfolio/internal/server/ws"
)

// ServerMode runs the HTTP + WebSocket API in front of the ledger.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, a.buildLedger(deps))
	a.startWatcher(ctx, g, deps)

	return ignoreCanceled(g.Wait())
}

// ArchiveMode periodically moves aged journal entries and audit rows to cold
// storage. It requires both postgres and s3.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return errors.New("app: archive mode requires postgres storage and s3 enabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)

	return ignoreCanceled(g.Wait())
}

// FullMode runs the API server and the archive loop together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, a.buildLedger(deps))
	a.startWatcher(ctx, g, deps)
	if deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	}

	return ignoreCanceled(g.Wait())
}

// buildLedger assembles the orchestrator from whatever optional capabilities
// were wired.
func (a *App) buildLedger(deps *Dependencies) *ledger.Orchestrator {
	opts := []ledger.Option{
		ledger.WithLockTTL(a.cfg.Ledger.LockTTL.Duration),
		ledger.WithDefaultCurrency(domain.Currency(a.cfg.Ledger.DefaultCurrency)),
	}
	if deps.LockManager != nil {
		opts = append(opts, ledger.WithLockManager(deps.LockManager))
	}
	if deps.EventBus != nil {
		opts = append(opts, ledger.WithEventBus(deps.EventBus))
	}
	if deps.AuditStore != nil {
		opts = append(opts, ledger.WithAuditStore(deps.AuditStore))
	}
	if deps.Anchorer != nil {
		opts = append(opts, ledger.WithAnchorer(deps.Anchorer))
	}
	return ledger.New(deps.Store, a.logger, opts...)
}

// startServer registers the HTTP server and, when an event bus is wired, the
// WebSocket hub on the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, orch *ledger.Orchestrator) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled by config")
		return
	}

	var hub *ws.Hub
	if deps.EventBus != nil {
		hub = ws.NewHub(deps.EventBus, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	var propertyCache handler.PropertyCache
	if deps.PropertyCache != nil {
		propertyCache = deps.PropertyCache
	}

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(),
		Wallets:      handler.NewWalletHandler(orch, a.logger),
		Properties:   handler.NewPropertyHandler(orch, propertyCache, a.logger),
		Investments:  handler.NewInvestmentHandler(orch, a.logger),
		Transactions: handler.NewTransactionHandler(orch, a.logger),
		Portfolio:    handler.NewPortfolioHandler(orch, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startWatcher bridges committed transaction events to operator alerts.
func (a *App) startWatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.EventBus == nil || deps.Notifier == nil {
		return
	}

	threshold, err := decimal.NewFromString(a.cfg.Notify.LargeWithdrawalThreshold)
	if err != nil {
		a.logger.WarnContext(ctx, "invalid large_withdrawal_threshold, alerts disabled",
			slog.String("value", a.cfg.Notify.LargeWithdrawalThreshold),
		)
		return
	}

	watcher := notify.NewWatcher(deps.EventBus, deps.Notifier, threshold, a.logger)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
}

// startArchiver runs the cold-archive loop on the errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				a.runArchive(ctx, deps, cutoff)
			}
		}
	})
}

// runArchive performs one archive pass. Failures are logged, not fatal; the
// next tick retries.
func (a *App) runArchive(ctx context.Context, deps *Dependencies, cutoff time.Time) {
	n, err := deps.Archiver.ArchiveTransactions(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive: transactions failed",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archive: transactions archived",
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff),
		)
	}

	n, err = deps.Archiver.ArchiveAuditLog(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive: audit log failed",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archive: audit entries archived",
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff),
		)
	}
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("app: %w", err)
}
