package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/amqp"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
)

type fakeSyncer struct {
	mu      sync.Mutex
	runs    []sheets.Feed
	runAlls int
}

func (f *fakeSyncer) Run(_ context.Context, feed sheets.Feed) services.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, feed)
	return services.SyncResult{Label: feed.String(), Added: 1}
}

func (f *fakeSyncer) RunAll(_ context.Context) []services.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runAlls++
	return []services.SyncResult{
		{Label: sheets.FeedHistoricExpenses.String()},
		{Label: sheets.FeedHistoricIncomes.String(), Error: "sheet unavailable"},
	}
}

func (f *fakeSyncer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs), f.runAlls
}

func TestHandleSyncRequest_SingleFeed(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, time.Hour, nil)

	err := w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage("current_month_incomes"))
	require.NoError(t, err)

	assert.Equal(t, []sheets.Feed{sheets.FeedCurrentMonthIncomes}, syncer.runs)
	assert.Zero(t, syncer.runAlls)
}

func TestHandleSyncRequest_All(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, time.Hour, nil)

	// failed jobs are reported, not retried
	require.NoError(t, w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage(amqp.LabelAll)))

	runs, runAlls := syncer.counts()
	assert.Zero(t, runs)
	assert.Equal(t, 1, runAlls)
}

func TestHandleSyncRequest_UnknownLabelIsPermanent(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, time.Hour, nil)

	err := w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage("weekly_expenses"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, amqp.ErrPermanent))
	assert.True(t, errors.Is(err, sheets.ErrUnknownFeed))

	runs, runAlls := syncer.counts()
	assert.Zero(t, runs)
	assert.Zero(t, runAlls)
}

func TestRun_PeriodicSync(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// startup run plus at least two ticks
	require.Eventually(t, func() bool {
		_, runAlls := syncer.counts()
		return runAlls >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestRun_StartupOnlyWithoutInterval(t *testing.T) {
	syncer := &fakeSyncer{}
	w := NewSyncWorker(syncer, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, runAlls := syncer.counts()
	assert.Equal(t, 1, runAlls)
}
