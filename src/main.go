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

	"expenses-server/src/api"
	"expenses-server/src/config"
	"expenses-server/src/db"
	"expenses-server/src/events"
	"expenses-server/src/logging"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Connect to database and apply migrations
	store, err := db.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}

	// CACHE_TTL=0 serves every read from the database
	cached, err := db.WithCache(store, cfg.CacheTTL)
	if err != nil {
		store.Close()
		return err
	}
	defer cached.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		publisher = p
	}
	defer publisher.Close()

	router := api.NewRouter(cached, publisher, logger, api.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		ReadOnly:    cfg.ReadOnly,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API server running", "port", cfg.Port, "db_driver", cfg.DBDriver, "read_only", cfg.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
