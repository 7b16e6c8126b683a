// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notevault/internal/journal"
	"github.com/starford/notevault/internal/mcpserver"
	"github.com/starford/notevault/internal/noteservice"
	"github.com/starford/notevault/internal/storage"
)

// Run starts the application with the given options. It serves MCP over the
// configured streams until the input ends or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts...)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// stdout carries the MCP protocol, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(app.stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("default_vault", cfg.Vaults.Default),
		slog.Int("vaults", len(cfg.Vaults.Entries)),
		slog.Bool("journal", cfg.Journal.Enabled),
		slog.String("rewrite_mode", string(cfg.Links.RewriteMode)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var db *journal.DB
	if cfg.Journal.Enabled {
		var err error
		if db, err = journal.Open(cfg.Journal.Path); err != nil {
			return fmt.Errorf("init journal: %w", err)
		}
		defer db.Close()
	}

	stores := make(map[string]*storage.FS, len(cfg.Vaults.Entries))
	services := make([]*noteservice.Service, 0, len(cfg.Vaults.Entries))
	for _, name := range cfg.Vaults.Names() {
		entry := cfg.Vaults.Entries[name]
		store, err := storage.NewFS(entry.Path)
		if err != nil {
			return fmt.Errorf("init vault %s: %w", name, err)
		}
		stores[name] = store

		svcOpts := []noteservice.Option{
			noteservice.WithDescription(entry.Description),
			noteservice.WithLogger(logger),
			noteservice.WithLinkMode(cfg.Links.RewriteMode),
		}
		if db != nil {
			svcOpts = append(svcOpts, noteservice.WithJournal(db))
		}
		services = append(services, noteservice.New(name, store, svcOpts...))
		logger.Info("Vault opened", slog.String("vault", name), slog.String("path", store.Root()))
	}

	registry, err := noteservice.NewRegistry(cfg.Vaults.Default, services...)
	if err != nil {
		return err
	}
	srv := mcpserver.New(registry, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	if db != nil {
		for name, store := range stores {
			g.Go(func() error {
				if err := journal.Reconcile(gCtx, db, name, store, logger); err != nil {
					logger.Warn("initial reconcile failed", slog.String("vault", name), slog.String("error", err.Error()))
				}
				if !cfg.Journal.Watch {
					return nil
				}
				if err := journal.Watch(gCtx, db, name, store, logger); err != nil {
					logger.Error("watcher failed", slog.String("vault", name), slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}

	// Start the MCP stdio server. The input ending stops the process.
	g.Go(func() error {
		defer cancel()
		logger.Info("Starting MCP stdio server")
		if err := srv.Serve(gCtx, app.stdin, app.stdout); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
