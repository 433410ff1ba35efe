package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

const (
	CurrencyARS = "ARS"
	CurrencyUSD = "USD"
)

// SourceAPI tags rows submitted directly rather than synced from a feed.
const SourceAPI = "api"

type (
	// Kind selects one of the two disjoint transaction tables.
	Kind string

	// Transaction is a flat ledger row. Tag holds the expense category for
	// expenses and the currency code for incomes. Source names the feed the
	// row was synced from; reconciliation only touches rows of its own source.
	Transaction struct {
		ID          string
		Timestamp   time.Time
		Description string
		Amount      decimal.Decimal
		Tag         string
		Source      string
	}
)

var (
	ErrDuplicate          = errors.New("duplicate record")
	ErrDuplicateStatement = errors.New("duplicate statement")
	ErrInvalidStatement   = errors.New("invalid statement payload")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 500 characters)")
	ErrEmptyTag           = errors.New("empty category or currency")
	ErrMissingID          = errors.New("missing identifier")
	ErrUnknownKind        = errors.New("unknown transaction kind")
)

func (k Kind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

func (k Kind) String() string {
	return string(k)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if t.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(t.Tag) == "" {
		return ErrEmptyTag
	}
	return nil
}

// NormalizeCurrency maps free-form currency labels to ARS or USD.
// Unknown labels are returned upper-cased and unchanged.
func NormalizeCurrency(s string) string {
	c := strings.ToUpper(strings.TrimSpace(s))
	switch c {
	case "", "ARS", "PESOS", "PESO", "$":
		return CurrencyARS
	case "USD", "DOLARES", "DÓLARES", "DOLAR", "DÓLAR", "U$S", "US$":
		return CurrencyUSD
	}
	return c
}
