package backend

import (
	"context"

	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the feed reader and optional cleanup function
type BackendResult struct {
	Feeds   sheets.FeedReader
	Cleanup CleanupFunc
}

// Factory creates feed readers based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for feed backend creation
type Config struct {
	Type BackendType

	// Google Sheets specific
	CredentialsJSON string
	CredentialsFile string
	Worksheets      map[sheets.Feed]gsheet.Worksheet

	// Memory backend specific
	FeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
