// Package app provides the top-level application lifecycle for the market
// maker daemon. It wires together all dependencies (stores, caches, blob
// storage, the operator signer, and the market service), starts the HTTP API,
// the WebSocket hub, and the archival loop, and tears everything down in
// reverse order on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liquiditysense/lsmm/internal/config"
	"github.com/liquiditysense/lsmm/internal/server"
	"github.com/liquiditysense/lsmm/internal/server/handler"
	"github.com/liquiditysense/lsmm/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, restores engine
// state from the database, starts the server goroutines, and blocks until the
// context is cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Restore every persisted market into the in-memory engine before
	// serving traffic.
	if err := deps.Markets.LoadAll(ctx); err != nil {
		return fmt.Errorf("app: load markets: %w", err)
	}
	a.logger.InfoContext(ctx, "operator ready",
		slog.String("operator_address", deps.Signer.Address().Hex()),
	)

	g, gctx := errgroup.WithContext(ctx)

	// WebSocket hub over the signal bus.
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	// HTTP API.
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Markets:   handler.NewMarketHandler(deps.Markets, a.logger),
		Trades:    handler.NewTradeHandler(deps.Markets, a.logger),
		Positions: handler.NewPositionHandler(deps.Markets, a.logger),
	}
	if deps.Archiver != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
		RateLimiter:     deps.RateLimiter,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Archival loop for settled markets.
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(gctx, deps)
		})
	}

	err = g.Wait()
	a.Close()
	if ctx.Err() != nil {
		// Normal shutdown via signal.
		return nil
	}
	return err
}

// runArchiveLoop periodically exports and prunes the transfer history of
// markets resolved longer ago than the retention window.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
			pruned, err := deps.Archiver.ArchiveResolved(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive cycle failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if pruned > 0 {
				a.logger.InfoContext(ctx, "archive cycle complete",
					slog.Int64("transfers_pruned", pruned),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
