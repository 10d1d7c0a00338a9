// Package main is the entry point for the daily stats collector.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/digit-srl/diarycollector/internal/config"
	"github.com/digit-srl/diarycollector/internal/handler"
	"github.com/digit-srl/diarycollector/internal/metrics"
	"github.com/digit-srl/diarycollector/internal/repo"
	"github.com/digit-srl/diarycollector/internal/seencache"
	"github.com/digit-srl/diarycollector/internal/service"
	"github.com/digit-srl/diarycollector/internal/wom"
	"github.com/digit-srl/diarycollector/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	if cfg.MigrateOnStart {
		if err := migrate(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
	}

	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("database connection established")

	// --- Collaborators ----------------------------------------------------
	m := metrics.New(prometheus.DefaultRegisterer)

	issuer := wom.NewClient(wom.Config{
		BaseURL:   cfg.WOM.BaseURL,
		SourceID:  cfg.WOM.SourceID,
		SourceKey: cfg.WOM.SourceKey,
		LinkBase:  cfg.WOM.LinkBase,
		Timeout:   cfg.WOM.Timeout,
	})

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
	}
	cache, err := seencache.Dial(ctx, cfg.Redis.URL, cfg.Redis.TTL)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		opts = append(opts, service.WithSeenCache(cache))
		slog.Info("seen cache enabled")
	}

	ingest := service.NewIngestService(repo.NewDailyStatsRepo(pool), issuer, opts...)

	// --- HTTP Server ------------------------------------------------------
	routes := handler.NewServer(ingest, logger).Routes(handler.RouterConfig{
		CORSOrigins:        cfg.CORSOrigins,
		APIKeys:            cfg.APIKeys,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// The write timeout leaves room for the voucher request.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routes,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WOM.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		// Give in-flight uploads up to 15 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// migrate applies pending goose migrations over a short-lived database/sql handle.
func migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "count", n)
	return nil
}
