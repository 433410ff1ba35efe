package core

import (
	"fmt"
	"strings"
	"time"
)

// Spreadsheet column headers.
const (
	ColumnID          = "UUID"
	ColumnTimestamp   = "Marca temporal"
	ColumnDescription = "Descripción"
	ColumnDescAlt     = "Descripcion"
	ColumnAmount      = "Importe"
	ColumnCategory    = "Tipo de gatos"
	ColumnCurrency    = "Moneda"
)

// FeedTimestampLayout is the spreadsheet date-time format (dd/mm/yyyy HH:MM:SS).
const FeedTimestampLayout = "02/01/2006 15:04:05"

// StoreTimestampLayout is the layout persisted in the store; strftime can read it.
const StoreTimestampLayout = "2006-01-02 15:04:05"

// FeedRow is one spreadsheet record keyed by column header.
type FeedRow map[string]string

// ID returns the trimmed identifier of the row, "" when absent.
func (r FeedRow) ID() string {
	return strings.TrimSpace(r[ColumnID])
}

func (r FeedRow) description() string {
	if v, ok := r[ColumnDescription]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(r[ColumnDescAlt])
}

// ParseFeedTimestamp parses the spreadsheet timestamp. A date without a time
// component is accepted as midnight.
func ParseFeedTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{FeedTimestampLayout, "2/1/2006 15:04:05", "02/01/2006", "2/1/2006"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// ParseFeedRow converts a spreadsheet record into a Transaction of the given kind.
func ParseFeedRow(kind Kind, r FeedRow) (Transaction, error) {
	tagColumn := ColumnCategory
	switch kind {
	case KindExpense:
	case KindIncome:
		tagColumn = ColumnCurrency
	default:
		return Transaction{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	id := r.ID()
	if id == "" {
		return Transaction{}, ErrMissingID
	}
	ts, err := ParseFeedTimestamp(r[ColumnTimestamp])
	if err != nil {
		return Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	amount, err := ParseSheetAmount(r[ColumnAmount])
	if err != nil {
		return Transaction{}, fmt.Errorf("row %s: %w: %q", id, err, r[ColumnAmount])
	}
	tag := strings.TrimSpace(r[tagColumn])
	if kind == KindIncome {
		tag = NormalizeCurrency(tag)
	}
	return Transaction{
		ID:          id,
		Timestamp:   ts,
		Description: r.description(),
		Amount:      amount,
		Tag:         tag,
	}, nil
}
