package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
)

func main() {
	cfg, logger := cli.MustLoad()

	rt, err := cli.NewRuntime(context.Background(), cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize runtime", err)
	}

	deps := apphttp.Deps{
		Ledger:     rt.Ledger,
		Statements: rt.Statements,
		Sync:       rt.Sync,
		DB:         rt.Repo,
	}
	// leave the interface nil, not a typed nil pointer
	if rt.Resumes != nil {
		deps.Resumes = rt.Resumes
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, deps)
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 5 * time.Minute // sync jobs and PDF imports run inline
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		return errors.Join(err, rt.Close())
	})

	logger.Info("Starting finanzas server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
