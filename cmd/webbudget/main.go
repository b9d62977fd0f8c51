package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"webbudget/internal/amqp"
	"webbudget/internal/backend"
	"webbudget/internal/cache"
	"webbudget/internal/cli"
	apphttp "webbudget/internal/http"
	applog "webbudget/internal/log"
	"webbudget/internal/metrics"
	"webbudget/internal/middleware/ratelimit"
	"webbudget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	store := cli.OpenBackend(ctx, cfg)
	defer store.Cleanup()

	rec := metrics.New()
	svc := backend.Wire(store.UnitOfWork, rec)
	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, rec, store.Ping, logger, limiter)

	g, gctx := errgroup.WithContext(ctx)
	if limiter != nil {
		g.Go(func() error {
			cache.RunJanitor(gctx, 5*time.Minute, limiter)
			return nil
		})
	}

	// Relay recorded events to the broker; without one the outbox just
	// accumulates and the API keeps serving.
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, outbox relay disabled", "error", err)
	} else {
		defer amqpClient.Close()
		relayCfg := services.DefaultOutboxRelayConfig()
		relayCfg.PollInterval = cfg.OutboxInterval
		relayCfg.BatchSize = cfg.OutboxBatchSize
		relayCfg.MaxRetries = cfg.OutboxMaxRetries
		relay := services.NewOutboxRelay(store.UnitOfWork, amqpClient, rec, relayCfg)
		if err := relay.Start(gctx); err != nil {
			logger.Error("Failed to start outbox relay", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return relay.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting webbudget server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
