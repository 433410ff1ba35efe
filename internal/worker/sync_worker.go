package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finanzas/internal/amqp"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
)

// Syncer runs reconciliation jobs.
type Syncer interface {
	Run(ctx context.Context, feed sheets.Feed) services.SyncResult
	RunAll(ctx context.Context) []services.SyncResult
}

// SyncWorker runs sync jobs on request from the queue and on a fixed
// interval. Runs never overlap.
type SyncWorker struct {
	sync     Syncer
	interval time.Duration
	logger   *applog.Logger
	mu       sync.Mutex
}

func NewSyncWorker(s Syncer, interval time.Duration, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &SyncWorker{
		sync:     s,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleSyncRequest processes one queued request. Job failures are part of
// the results and do not requeue the message; an unknown label is rejected
// as permanent.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if msg.Label == amqp.LabelAll {
		w.runAll(ctx, "queue")
		return nil
	}

	feed, err := sheets.ParseFeed(msg.Label)
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}

	w.mu.Lock()
	res := w.sync.Run(ctx, feed)
	w.mu.Unlock()

	w.logResult(ctx, res, "queue")
	return nil
}

// Run syncs every feed once at startup and then on each interval tick until
// ctx is done. A non-positive interval only runs the startup sync.
func (w *SyncWorker) Run(ctx context.Context) error {
	w.runAll(ctx, "startup")

	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Periodic sync scheduled", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Periodic sync stopped")
			return ctx.Err()
		case <-ticker.C:
			w.runAll(ctx, "interval")
		}
	}
}

func (w *SyncWorker) runAll(ctx context.Context, trigger string) []services.SyncResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	results := w.sync.RunAll(ctx)
	failed := 0
	for _, res := range results {
		w.logResult(ctx, res, trigger)
		if res.Failed() {
			failed++
		}
	}
	w.logger.InfoContext(ctx, "Full sync finished",
		"trigger", trigger, "jobs", len(results), "failed", failed)
	return results
}

func (w *SyncWorker) logResult(ctx context.Context, res services.SyncResult, trigger string) {
	if res.Failed() {
		w.logger.WarnContext(ctx, "Sync job failed",
			applog.FieldSyncLabel, res.Label,
			applog.FieldError, res.Error,
			"trigger", trigger)
		return
	}
	w.logger.DebugContext(ctx, "Sync job done",
		applog.FieldSyncLabel, res.Label,
		applog.FieldAdded, res.Added,
		applog.FieldDeleted, res.Deleted,
		"trigger", trigger)
}
