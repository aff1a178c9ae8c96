package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/QRBulk/internal/config"
	"github.com/JonMunkholm/QRBulk/internal/core"
	"github.com/JonMunkholm/QRBulk/internal/logging"
	"github.com/JonMunkholm/QRBulk/internal/store"
	"github.com/JonMunkholm/QRBulk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"preview_size", cfg.Batch.PreviewSize,
		"max_export_size", cfg.Batch.MaxExportSize,
		"max_concurrent_runs", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	templates, closeStore, err := openTemplateStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open template store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	service := core.NewService(core.OptionsFromConfig(cfg), templates)
	server := web.NewServer(service, cfg)

	// Background session and download cleanup
	jobCtx, cancelJobs := context.WithCancel(ctx)
	service.StartJanitor(jobCtx, time.Minute)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for running batches to complete (with timeout)
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for batch runs to complete", "active", status.Active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("batch runs did not complete in time", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openTemplateStore uses Postgres when DATABASE_URL is set and the local
// JSON file otherwise.
func openTemplateStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if !cfg.Database.Enabled() {
		fs, err := store.NewFileStore(cfg.Templates.Path, cfg.Templates.Limit)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using file template store", "path", cfg.Templates.Path)
		return fs, func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	pg := store.NewPgStore(pool, cfg.Templates.Limit)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("using postgres template store", "database", cfg.Database.Name())
	return pg, pool.Close, nil
}
