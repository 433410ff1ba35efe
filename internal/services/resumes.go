package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
)

var ErrParserNotConfigured = errors.New("statement parser not configured")

// StatementParser converts a statement PDF into an ingestion payload.
type StatementParser interface {
	Parse(ctx context.Context, filename string, pdf io.Reader) ([]byte, error)
}

const (
	ResumeImported  = "imported"
	ResumeDuplicate = "duplicate"
	ResumeFailed    = "failed"
)

type ResumeFileResult struct {
	CardType   string `json:"card_type"`
	File       string `json:"file"`
	Status     string `json:"status"`
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ResumeImportReport struct {
	Imported   int                `json:"imported"`
	Duplicates int                `json:"duplicates"`
	Failed     int                `json:"failed"`
	Files      []ResumeFileResult `json:"files"`
}

// ResumeImporter ingests statement PDFs laid out as <dir>/<card_type>/MM-YYYY.pdf.
type ResumeImporter struct {
	dir         string
	parser      StatementParser
	statements  *Statements
	concurrency int
	logger      *applog.Logger
}

func NewResumeImporter(dir string, parser StatementParser, statements *Statements, concurrency int, logger *applog.Logger) *ResumeImporter {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &ResumeImporter{
		dir:         dir,
		parser:      parser,
		statements:  statements,
		concurrency: concurrency,
		logger:      logger.WithComponent(applog.ComponentResumes),
	}
}

type resumeFile struct {
	cardType string
	path     string
}

// Import processes every PDF under the directory. Per-file problems are
// reported in the result; the error is reserved for an unreadable directory,
// a missing parser or cancellation.
func (r *ResumeImporter) Import(ctx context.Context) (ResumeImportReport, error) {
	report := ResumeImportReport{Files: []ResumeFileResult{}}
	if r.parser == nil {
		return report, ErrParserNotConfigured
	}

	files, err := r.discover()
	if err != nil {
		return report, err
	}

	results := make([]ResumeFileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.importFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, res := range results {
		switch res.Status {
		case ResumeImported:
			report.Imported++
		case ResumeDuplicate:
			report.Duplicates++
		default:
			report.Failed++
		}
		report.Files = append(report.Files, res)
	}
	r.logger.InfoContext(ctx, "Statement import completed",
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"failed", report.Failed)
	return report, nil
}

func (r *ResumeImporter) discover() ([]resumeFile, error) {
	cards, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read statements directory: %w", err)
	}

	var files []resumeFile
	for _, card := range cards {
		if !card.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(r.dir, card.Name()))
		if err != nil {
			return nil, fmt.Errorf("read card directory %s: %w", card.Name(), err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				continue
			}
			files = append(files, resumeFile{cardType: card.Name(), path: filepath.Join(r.dir, card.Name(), e.Name())})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

func (r *ResumeImporter) importFile(ctx context.Context, f resumeFile) ResumeFileResult {
	name := filepath.Base(f.path)
	res := ResumeFileResult{CardType: f.cardType, File: name, Status: ResumeFailed}

	period, err := core.ParseStatementPeriod(strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		res.Error = fmt.Sprintf("file name must be MM-YYYY.pdf: %v", err)
		return res
	}

	payload, err := r.parse(ctx, f.path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	stmt, err := r.statements.Ingest(ctx, payload, f.cardType, period)
	switch {
	case errors.Is(err, core.ErrDuplicateStatement):
		res.Status = ResumeDuplicate
		res.DocumentID = DocumentID(payload)
	case err != nil:
		res.Error = err.Error()
		r.logger.WarnContext(ctx, "Statement import failed",
			applog.FieldFile, f.path, applog.FieldError, err)
	default:
		res.Status = ResumeImported
		res.DocumentID = stmt.DocumentID
	}
	return res
}

func (r *ResumeImporter) parse(ctx context.Context, path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	return r.parser.Parse(ctx, filepath.Base(path), fh)
}
