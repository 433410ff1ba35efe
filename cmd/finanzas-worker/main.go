package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	applog "finanzas/internal/log"
	"finanzas/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoad()
	logger.Info("Starting finanzas-worker", "sync_interval", cfg.SyncInterval.String())

	rt, err := cli.NewRuntime(context.Background(), cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize runtime", err)
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			rt.Close()
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, running periodic sync only")
	}

	syncWorker := worker.NewSyncWorker(rt.Sync, cfg.SyncInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncWorker.Run(gctx) })
	if amqpClient != nil {
		g.Go(func() error { return amqpClient.ConsumeSyncRequests(gctx, syncWorker.HandleSyncRequest) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	if amqpClient != nil {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
	if err := rt.Close(); err != nil {
		logger.Warn("Failed to close runtime", applog.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
