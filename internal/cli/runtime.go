package cli

import (
	"context"
	"errors"
	"time"

	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/pdfparser"
	"finanzas/internal/rates"
	"finanzas/internal/services"
	"finanzas/internal/storage"
)

const cacheCleanupInterval = 5 * time.Minute

// Runtime bundles the storage, feeds and services every binary works with.
type Runtime struct {
	Config     *config.Config
	Repo       *storage.SQLiteRepository
	Ledger     *services.Ledger
	Statements *services.Statements
	Sync       *services.Sync
	// Resumes is nil when PDF_PARSER_URL is not set.
	Resumes *services.ResumeImporter

	parser  *pdfparser.Client
	caches  *cache.Manager
	cleanup backend.CleanupFunc
}

// NewRuntime opens the ledger store, builds the configured feed backend and
// wires the services on top of them.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Runtime, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, wrap("open ledger store", err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		repo.Close()
		return nil, wrap("backend config", err)
	}
	feeds, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		repo.Close()
		return nil, wrap("create feed backend", err)
	}

	rateClient := rates.NewClient(rates.Config{
		URL:      cfg.RateURL,
		Path:     cfg.RatePath,
		Timeout:  cfg.RateTimeout,
		CacheTTL: cfg.RateCacheTTL,
	}, logger)

	caches := cache.NewManager()
	if c := rateClient.Cache(); c != nil {
		caches.Register("reference_rate", c)
		caches.StartCleanup(cacheCleanupInterval)
	}

	ledger := services.NewLedger(repo, rateClient, logger)
	statements := services.NewStatements(repo, logger)

	rt := &Runtime{
		Config:     cfg,
		Repo:       repo,
		Ledger:     ledger,
		Statements: statements,
		Sync:       services.NewSync(feeds.Feeds, ledger, repo, logger),
		caches:     caches,
		cleanup:    feeds.Cleanup,
	}

	if cfg.PDFParserURL != "" {
		rt.parser = pdfparser.NewClient(pdfparser.Config{URL: cfg.PDFParserURL, Timeout: cfg.PDFParserTimeout}, logger)
		rt.Resumes = services.NewResumeImporter(cfg.ResumesDir, rt.parser, statements, cfg.ResumeImportConcurrency, logger)
	}

	logger.Info("Runtime ready",
		"backend", cfg.DataBackend,
		"db_path", cfg.SQLiteDBPath,
		"pdf_parser", cfg.PDFParserURL != "")
	return rt, nil
}

// Parser returns the PDF parsing client, nil when none is configured.
func (rt *Runtime) Parser() *pdfparser.Client {
	return rt.parser
}

// Close releases the store, the feed backend and the cache cleaner.
func (rt *Runtime) Close() error {
	rt.caches.Stop()
	var errs []error
	if rt.cleanup != nil {
		errs = append(errs, rt.cleanup())
	}
	errs = append(errs, rt.Repo.Close())
	return errors.Join(errs...)
}
