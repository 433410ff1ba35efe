package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TotalHolder is the payload key that carries the declared document totals
// instead of a real holder.
const TotalHolder = "Total"

type (
	// Statement is one ingested credit-card statement, identified by the
	// content hash of the submitted payload.
	Statement struct {
		DocumentID string
		CardType   string
		Period     Period
		TotalARS   decimal.Decimal
		TotalUSD   decimal.Decimal
		Holders    []HolderSummary
	}

	// HolderSummary groups the lines of one statement holder.
	HolderSummary struct {
		Holder   string
		TotalARS decimal.Decimal
		TotalUSD decimal.Decimal
		Lines    []ExpenseLine
	}

	// ExpenseLine keeps its ordinal within the holder's detail list, so
	// duplicated lines survive.
	ExpenseLine struct {
		Position    int
		Date        time.Time
		Description string
		Amount      decimal.Decimal
		Currency    string
	}
)

// InferLineCurrency classifies a statement line by the "USD" marker in its
// description.
func InferLineCurrency(description string) string {
	if strings.Contains(strings.ToUpper(description), CurrencyUSD) {
		return CurrencyUSD
	}
	return CurrencyARS
}
