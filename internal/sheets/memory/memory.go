// Package memory provides an in-process feed reader, seeded from a JSON file
// or set directly. It stands in for the spreadsheets in development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"
)

var _ ports.FeedReader = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	feeds map[ports.Feed][]core.FeedRow
	err   error
}

func New() *Store {
	return &Store{feeds: map[ports.Feed][]core.FeedRow{}}
}

// NewFromFile loads feeds from a JSON object keyed by feed name:
//
//	{"historic_expenses": [{"UUID": "a", "Importe": "$10", ...}], ...}
//
// An empty path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	var raw map[string][]core.FeedRow
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode feed file %s: %w", path, err)
	}
	for name, rows := range raw {
		feed, err := ports.ParseFeed(name)
		if err != nil {
			return nil, fmt.Errorf("feed file %s: %w", path, err)
		}
		s.Set(feed, rows)
	}
	return s, nil
}

// Set replaces the content of a feed.
func (s *Store) Set(feed ports.Feed, rows []core.FeedRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[feed] = cloneRows(rows)
}

// FailWith makes every subsequent read return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ReadFeed returns a copy of the feed. Unset feeds are empty.
func (s *Store) ReadFeed(_ context.Context, feed ports.Feed) ([]core.FeedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return cloneRows(s.feeds[feed]), nil
}

func cloneRows(in []core.FeedRow) []core.FeedRow {
	out := make([]core.FeedRow, len(in))
	for i, r := range in {
		row := make(core.FeedRow, len(r))
		for k, v := range r {
			row[k] = v
		}
		out[i] = row
	}
	return out
}
