package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwari-pos/backoffice/internal/config"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/events"
	"github.com/kiwari-pos/backoffice/internal/report"
	"github.com/kiwari-pos/backoffice/internal/repository"
	"github.com/kiwari-pos/backoffice/internal/router"
	"github.com/kiwari-pos/backoffice/internal/service"
	"github.com/kiwari-pos/backoffice/internal/ws"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := config.NewLogger(cfg.Logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	publishers := events.Multi{hub}
	if cfg.AMQP.Enabled {
		rabbit, err := events.DialRabbit(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		publishers = append(publishers, rabbit)
	}

	queries := database.New(pool)
	orders := repository.NewOrderRepository(queries, logger)

	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		orders,
		logger,
		service.WithPublisher(publishers),
		service.WithStoreTimeout(cfg.StoreTimeout),
	)
	reportService := report.NewService(orders, cfg.Location(), cfg.StoreTimeout, logger)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.New(cfg, router.Services{
			Orders:  orderService,
			Reports: reportService,
			Hub:     hub,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("report_tz", cfg.ReportTimezone).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
