package services

import (
	"context"
	"fmt"
	"time"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/reconcile"
	"finanzas/internal/sheets"
)

// SyncResult reports one reconciliation job. Error is set instead of the
// counts when the job failed.
type SyncResult struct {
	Label          string  `json:"label"`
	Added          int     `json:"added"`
	Deleted        int     `json:"deleted"`
	Duplicates     int     `json:"duplicates,omitempty"`
	Reassigned     int     `json:"reassigned,omitempty"`
	Invalid        int     `json:"invalid,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Error          string  `json:"error,omitempty"`
}

// Failed reports whether the job ended in error.
func (r SyncResult) Failed() bool { return r.Error != "" }

// Sync reconciles the local ledger against the spreadsheet feeds.
type Sync struct {
	feeds  sheets.FeedReader
	ledger *Ledger
	repo   LedgerRepository
	logger *applog.Logger
}

func NewSync(feeds sheets.FeedReader, ledger *Ledger, repo LedgerRepository, logger *applog.Logger) *Sync {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Sync{
		feeds:  feeds,
		ledger: ledger,
		repo:   repo,
		logger: logger.WithComponent(applog.ComponentSync),
	}
}

// Run executes one job: read the feed, diff it against the identifiers
// previously synced from that feed, insert what is missing and delete what
// disappeared. Failures are captured in the result, never returned.
func (s *Sync) Run(ctx context.Context, feed sheets.Feed) SyncResult {
	start := time.Now()
	res := SyncResult{Label: feed.String()}

	if err := s.run(ctx, feed, &res); err != nil {
		res = SyncResult{Label: feed.String(), Error: err.Error()}
		s.logger.ErrorContext(ctx, "Sync job failed",
			applog.FieldSyncLabel, feed, applog.FieldError, err)
	} else {
		s.logger.InfoContext(ctx, "Sync job completed",
			applog.NewFields().WithSync(res.Label, res.Added, res.Deleted, res.Invalid).ToSlice()...)
	}
	res.ElapsedSeconds = time.Since(start).Seconds()
	return res
}

func (s *Sync) run(ctx context.Context, feed sheets.Feed, res *SyncResult) error {
	if _, err := sheets.ParseFeed(feed.String()); err != nil {
		return err
	}
	kind := feed.Kind()

	rows, err := s.feeds.ReadFeed(ctx, feed)
	if err != nil {
		return fmt.Errorf("read feed: %w", err)
	}
	local, err := s.repo.TransactionIDs(ctx, kind, feed.String())
	if err != nil {
		return fmt.Errorf("load local ids: %w", err)
	}

	plan := reconcile.Diff(rows, local)
	if plan.Empty() {
		return nil
	}

	report, err := s.ledger.InsertBatch(ctx, kind, feed.String(), plan.Insert)
	if err != nil {
		return err
	}
	res.Added = report.Inserted
	res.Invalid = report.Invalid

	// A duplicate is usually a row another feed of the same table stored
	// first, e.g. a current-month row that rolled over into the historic
	// sheet. Taking it over keeps the other feed from deleting it.
	var taken []string
	for _, o := range report.Rows {
		if o.Outcome == core.OutcomeDuplicate {
			taken = append(taken, o.ID)
		}
	}
	reassigned, err := s.repo.ReassignTransactions(ctx, kind, feed.String(), taken)
	if err != nil {
		return fmt.Errorf("reassign rows: %w", err)
	}
	res.Reassigned = int(reassigned)
	res.Duplicates = report.Duplicates - res.Reassigned

	deleted, err := s.repo.DeleteTransactions(ctx, kind, plan.Delete)
	if err != nil {
		return fmt.Errorf("delete stale rows: %w", err)
	}
	res.Deleted = int(deleted)
	return nil
}

// RunAll runs every job sequentially, in sheets.Feeds order.
func (s *Sync) RunAll(ctx context.Context) []SyncResult {
	results := make([]SyncResult, 0, len(sheets.Feeds))
	for _, feed := range sheets.Feeds {
		results = append(results, s.Run(ctx, feed))
	}
	return results
}
