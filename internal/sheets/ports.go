package sheets

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/core"
)

// Feed names one worksheet of record. The value doubles as the sync job label.
type Feed string

const (
	FeedHistoricExpenses     Feed = "historic_expenses"
	FeedCurrentMonthExpenses Feed = "current_month_expenses"
	FeedHistoricIncomes      Feed = "historic_incomes"
	FeedCurrentMonthIncomes  Feed = "current_month_incomes"
)

// Feeds lists every feed in the order a full sync runs them.
var Feeds = []Feed{
	FeedHistoricExpenses,
	FeedCurrentMonthExpenses,
	FeedHistoricIncomes,
	FeedCurrentMonthIncomes,
}

var ErrUnknownFeed = errors.New("unknown feed")

// Kind returns the ledger table the feed reconciles against.
func (f Feed) Kind() core.Kind {
	switch f {
	case FeedHistoricIncomes, FeedCurrentMonthIncomes:
		return core.KindIncome
	}
	return core.KindExpense
}

func (f Feed) String() string { return string(f) }

// ParseFeed validates a feed name.
func ParseFeed(s string) (Feed, error) {
	for _, f := range Feeds {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFeed, s)
}

// FeedReader returns the full content of a feed as header-keyed records.
type FeedReader interface {
	ReadFeed(ctx context.Context, feed Feed) ([]core.FeedRow, error)
}
