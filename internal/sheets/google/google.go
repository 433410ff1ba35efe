// Package google reads the spreadsheets of record through the Sheets API.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
	ports "finanzas/internal/sheets"
)

var _ ports.FeedReader = (*Client)(nil)

// Worksheet locates a feed: a spreadsheet and a worksheet inside it, given
// either by title or by zero-based index ("5").
type Worksheet struct {
	SpreadsheetID string
	Sheet         string
}

// Options configures the client.
type Options struct {
	CredentialsJSON []byte
	CredentialsFile string
	Worksheets      map[ports.Feed]Worksheet
}

type Client struct {
	svc        *gsheet.Service
	worksheets map[ports.Feed]Worksheet
	logger     *applog.Logger

	mu     sync.Mutex
	titles map[string]string // spreadsheetID/index -> title
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, opts Options, logger *applog.Logger) (*Client, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	creds := opts.CredentialsJSON
	if len(creds) == 0 {
		if opts.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials")
		}
		var err error
		if creds, err = os.ReadFile(opts.CredentialsFile); err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "feeds", len(opts.Worksheets))

	return &Client{
		svc:        svc,
		worksheets: opts.Worksheets,
		logger:     logger,
		titles:     map[string]string{},
	}, nil
}

// ReadFeed returns every record of the feed's worksheet using the first row
// as headers. Cells are read as displayed in the sheet.
func (c *Client) ReadFeed(ctx context.Context, feed ports.Feed) ([]core.FeedRow, error) {
	ws, ok := c.worksheets[feed]
	if !ok || ws.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: %s has no worksheet configured", ports.ErrUnknownFeed, feed)
	}

	title, err := c.resolveTitle(ctx, ws)
	if err != nil {
		return nil, err
	}

	resp, err := c.svc.Spreadsheets.Values.Get(ws.SpreadsheetID, quoteTitle(title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", title, err)
	}

	rows := recordsFromValues(resp.Values)
	c.logger.DebugContext(ctx, "Feed read", "feed", feed, "worksheet", title, "rows", len(rows))
	return rows, nil
}

// resolveTitle turns a worksheet index into its title. Titles are memoized
// per spreadsheet for the lifetime of the client.
func (c *Client) resolveTitle(ctx context.Context, ws Worksheet) (string, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(ws.Sheet))
	if err != nil {
		return ws.Sheet, nil
	}

	key := ws.SpreadsheetID + "/" + ws.Sheet
	c.mu.Lock()
	title, ok := c.titles[key]
	c.mu.Unlock()
	if ok {
		return title, nil
	}

	ss, err := c.svc.Spreadsheets.Get(ws.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get spreadsheet %s: %w", ws.SpreadsheetID, err)
	}
	title, err = titleAt(ss.Sheets, idx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.titles[key] = title
	c.mu.Unlock()
	return title, nil
}

func titleAt(sheets []*gsheet.Sheet, idx int) (string, error) {
	if idx < 0 || idx >= len(sheets) {
		return "", fmt.Errorf("worksheet index %d out of range (spreadsheet has %d)", idx, len(sheets))
	}
	if sheets[idx].Properties == nil {
		return "", fmt.Errorf("worksheet %d has no properties", idx)
	}
	return sheets[idx].Properties.Title, nil
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// recordsFromValues converts a value matrix into header-keyed records.
// Blank header cells are ignored, short rows are padded with "" and rows
// with no content are dropped.
func recordsFromValues(values [][]interface{}) []core.FeedRow {
	if len(values) == 0 {
		return nil
	}
	headers := toStrings(values[0])

	out := make([]core.FeedRow, 0, len(values)-1)
	for _, raw := range values[1:] {
		cells := toStrings(raw)
		row := make(core.FeedRow, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			if _, dup := row[h]; dup {
				continue
			}
			v := ""
			if i < len(cells) {
				v = cells[i]
			}
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			row[h] = v
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
