package backend

import (
	"context"
	"fmt"

	applog "finanzas/internal/log"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		CredentialsJSON: []byte(config.CredentialsJSON),
		CredentialsFile: config.CredentialsFile,
		Worksheets:      config.Worksheets,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets feeds", "feeds", len(config.Worksheets))
	return &BackendResult{Feeds: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.FeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory feeds: %w", err)
	}

	f.logger.Info("Initialized memory feeds", "feed_file", config.FeedFile)
	return &BackendResult{Feeds: store}, nil
}
