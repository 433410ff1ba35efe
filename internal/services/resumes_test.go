package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

type fakeParser struct {
	payloads map[string]string
}

func (f *fakeParser) Parse(_ context.Context, filename string, pdf io.Reader) ([]byte, error) {
	if _, err := io.ReadAll(pdf); err != nil {
		return nil, err
	}
	payload, ok := f.payloads[filename]
	if !ok {
		return nil, errors.New("parser rejected " + filename)
	}
	return []byte(payload), nil
}

func writePDF(t *testing.T, dir, card, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, card), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, card, name), []byte("%PDF-1.4"), 0o644))
}

func TestResumeImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writePDF(t, dir, "amex", "03-2025.pdf")
	writePDF(t, dir, "visa", "03-2025.pdf")
	writePDF(t, dir, "visa", "04-2025.pdf")
	writePDF(t, dir, "visa", "notas.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visa", "leeme.txt"), []byte("x"), 0o644))

	statements := NewStatements(newTestRepo(t), nil)
	parser := &fakeParser{payloads: map[string]string{"03-2025.pdf": visaPayload}}
	importer := NewResumeImporter(dir, parser, statements, 1, nil)

	report, err := importer.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Files, 4)

	assert.Equal(t, ResumeFileResult{
		CardType: "amex", File: "03-2025.pdf", Status: ResumeImported, DocumentID: DocumentID([]byte(visaPayload)),
	}, report.Files[0])
	assert.Equal(t, ResumeDuplicate, report.Files[1].Status)
	assert.Equal(t, ResumeFailed, report.Files[2].Status)
	assert.Contains(t, report.Files[2].Error, "parser rejected")
	assert.Equal(t, "notas.pdf", report.Files[3].File)
	assert.Contains(t, report.Files[3].Error, "MM-YYYY")

	available, err := statements.ListAvailable(ctx, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	assert.Contains(t, available, "amex")
}

func TestResumeImport_Concurrent(t *testing.T) {
	dir := t.TempDir()
	payloads := map[string]string{}
	for _, name := range []string{"01-2025.pdf", "02-2025.pdf", "03-2025.pdf"} {
		writePDF(t, dir, "visa", name)
		payloads[name] = `{"Ana": {"Detail": [{"descripcion": "` + name + `", "importe": "1"}]}}`
	}
	importer := NewResumeImporter(dir, &fakeParser{payloads: payloads}, NewStatements(newTestRepo(t), nil), 3, nil)

	report, err := importer.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, "01-2025.pdf", report.Files[0].File)
}

func TestResumeImport_Errors(t *testing.T) {
	statements := NewStatements(newTestRepo(t), nil)

	_, err := NewResumeImporter(t.TempDir(), nil, statements, 1, nil).Import(context.Background())
	assert.ErrorIs(t, err, ErrParserNotConfigured)

	_, err = NewResumeImporter(filepath.Join(t.TempDir(), "missing"), &fakeParser{}, statements, 1, nil).Import(context.Background())
	assert.Error(t, err)
}
