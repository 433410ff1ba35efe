package cli

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/sheets"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	feedFile := filepath.Join(t.TempDir(), "feeds.json")
	require.NoError(t, os.WriteFile(feedFile, []byte(`{
  "historic_expenses": [
    {"UUID": "a1", "Marca temporal": "05/03/2025 10:00:00", "Descripción": "Super", "Importe": "$ 1,500.00", "Tipo de gatos": "Comida"}
  ]
}`), 0o600))

	return &config.Config{
		Port:                    "8000",
		LogFormat:               "json",
		LogLevel:                "debug",
		SQLiteDBPath:            filepath.Join(t.TempDir(), "finanzas.db"),
		DataBackend:             config.BackendMemory,
		MemoryFeedFile:          feedFile,
		ResumesDir:              t.TempDir(),
		ResumeImportConcurrency: 2,
		SyncInterval:            time.Hour,
	}
}

func TestNewRuntime_MemoryBackend(t *testing.T) {
	cfg := testConfig(t)
	rt, err := NewRuntime(context.Background(), cfg, applog.Discard())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Resumes, "no parser configured")

	res := rt.Sync.Run(context.Background(), sheets.FeedHistoricExpenses)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 1, res.Added)
	assert.NoError(t, rt.Repo.Ping(context.Background()))
}

func TestNewRuntime_WithParser(t *testing.T) {
	cfg := testConfig(t)
	cfg.PDFParserURL = "http://127.0.0.1:1/parse"

	rt, err := NewRuntime(context.Background(), cfg, applog.Discard())
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Resumes)
}

func TestNewRuntime_BadFeedFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.MemoryFeedFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := NewRuntime(context.Background(), cfg, applog.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create feed backend")
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"})
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), -4), "debug disabled at warn level")

	assert.NotNil(t, SetupLogger(nil))
}

func TestGracefulShutdown_RunsCleanupOnSignal(t *testing.T) {
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(applog.Discard(), time.Second, func(context.Context) error {
		close(cleaned)
		return nil
	})

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-cleaned:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not run")
	}
	WaitForShutdown(ctx, done)
	assert.Error(t, ctx.Err())
}
