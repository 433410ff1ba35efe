package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func expense(id string, ts time.Time, amount string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Timestamp:   ts,
		Description: "desc " + id,
		Amount:      decimal.RequireFromString(amount),
		Tag:         "Super",
	}
}

func TestInsertTransactions_DuplicatesAreReportedNotFatal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	out, err := repo.InsertTransactions(ctx, core.KindExpense, []core.Transaction{
		expense("a", ts, "10"),
		expense("b", ts, "20"),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, core.OutcomeInserted, out[0].Outcome)
	assert.Equal(t, core.OutcomeInserted, out[1].Outcome)

	out, err = repo.InsertTransactions(ctx, core.KindExpense, []core.Transaction{
		expense("a", ts, "99"),
		expense("c", ts, "30"),
	})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDuplicate, out[0].Outcome)
	assert.Equal(t, core.OutcomeInserted, out[1].Outcome)

	ids, err := repo.TransactionIDs(ctx, core.KindExpense, "")
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	// The first write wins.
	rows, err := repo.TransactionsByPeriod(ctx, core.KindExpense, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	for _, r := range rows {
		if r.ID == "a" {
			assert.True(t, r.Amount.Equal(decimal.NewFromInt(10)))
		}
	}
}

func TestCreateTransaction_Duplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tx := expense("x", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "1.5")

	require.NoError(t, repo.CreateTransaction(ctx, core.KindIncome, tx))
	err := repo.CreateTransaction(ctx, core.KindIncome, tx)
	assert.True(t, errors.Is(err, core.ErrDuplicate))

	// Kinds are disjoint tables.
	require.NoError(t, repo.CreateTransaction(ctx, core.KindExpense, tx))
}

func TestTransactionsByPeriod_FiltersAndOrders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.InsertTransactions(ctx, core.KindExpense, []core.Transaction{
		expense("late", time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), "3"),
		expense("early", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "1"),
		expense("april", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "9"),
		expense("lastyear", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "9"),
	})
	require.NoError(t, err)

	rows, err := repo.TransactionsByPeriod(ctx, core.KindExpense, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "early", rows[0].ID)
	assert.Equal(t, "late", rows[1].ID)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), rows[1].Timestamp)
	assert.Equal(t, "Super", rows[1].Tag)
}

func TestDeleteTransactions_Chunked(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

	var txs []core.Transaction
	var ids []string
	for i := 0; i < deleteChunkSize+20; i++ {
		id := decimal.NewFromInt(int64(i)).String()
		txs = append(txs, expense(id, ts, "1"))
		ids = append(ids, id)
	}
	_, err := repo.InsertTransactions(ctx, core.KindExpense, txs)
	require.NoError(t, err)

	n, err := repo.DeleteTransactions(ctx, core.KindExpense, append(ids[:deleteChunkSize+10], "missing"))
	require.NoError(t, err)
	assert.EqualValues(t, deleteChunkSize+10, n)

	left, err := repo.TransactionIDs(ctx, core.KindExpense, "")
	require.NoError(t, err)
	assert.Len(t, left, 10)

	n, err = repo.DeleteTransactions(ctx, core.KindExpense, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactionIDs_ScopedBySource(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a, b := expense("a", ts, "1"), expense("b", ts, "2")
	a.Source, b.Source = "historic_expenses", "current_month_expenses"

	_, err := repo.InsertTransactions(ctx, core.KindExpense, []core.Transaction{a, b})
	require.NoError(t, err)

	ids, err := repo.TransactionIDs(ctx, core.KindExpense, "historic_expenses")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}}, ids)

	txs, err := repo.TransactionsByPeriod(ctx, core.KindExpense, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "current_month_expenses", txs[1].Source)
}

func TestReassignTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a, b, c := expense("a", ts, "1"), expense("b", ts, "2"), expense("c", ts, "3")
	a.Source, b.Source, c.Source = "current_month_expenses", "historic_expenses", core.SourceAPI

	_, err := repo.InsertTransactions(ctx, core.KindExpense, []core.Transaction{a, b, c})
	require.NoError(t, err)

	n, err := repo.ReassignTransactions(ctx, core.KindExpense, "historic_expenses", []string{"a", "b", "c", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the row of the other feed moves")

	ids, err := repo.TransactionIDs(ctx, core.KindExpense, "historic_expenses")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}, "b": {}}, ids)

	api, err := repo.TransactionIDs(ctx, core.KindExpense, core.SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c": {}}, api)

	n, err = repo.ReassignTransactions(ctx, core.KindExpense, "historic_expenses", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnknownKind(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.TransactionIDs(context.Background(), core.Kind("transfer"), "")
	assert.ErrorIs(t, err, core.ErrUnknownKind)
}

func sampleStatement(id string) core.Statement {
	d := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	line := core.ExpenseLine{Date: d, Description: "CAFE", Amount: decimal.RequireFromString("1500.50"), Currency: core.CurrencyARS}
	first, second := line, line
	first.Position, second.Position = 0, 1
	return core.Statement{
		DocumentID: id,
		CardType:   "visa",
		Period:     core.Period{Year: 2025, Month: 2},
		TotalARS:   decimal.RequireFromString("3001"),
		TotalUSD:   decimal.RequireFromString("12.3"),
		Holders: []core.HolderSummary{
			{
				Holder:   "ANA",
				TotalARS: decimal.RequireFromString("3001"),
				TotalUSD: decimal.RequireFromString("12.3"),
				Lines: []core.ExpenseLine{first, second, {
					Position: 2, Date: d, Description: "NETFLIX USD", Amount: decimal.RequireFromString("12.3"), Currency: core.CurrencyUSD,
				}},
			},
			{Holder: "LUIS", TotalARS: decimal.RequireFromString("3001"), TotalUSD: decimal.RequireFromString("12.3")},
		},
	}
}

func TestCreateStatement_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := core.Period{Year: 2025, Month: 2}

	require.NoError(t, repo.CreateStatement(ctx, sampleStatement("doc1")))

	err := repo.CreateStatement(ctx, sampleStatement("doc1"))
	assert.ErrorIs(t, err, core.ErrDuplicateStatement)

	stmts, err := repo.StatementsByPeriod(ctx, p, "")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, "visa", stmts[0].CardType)
	assert.Equal(t, p, stmts[0].Period)
	assert.True(t, stmts[0].TotalUSD.Equal(decimal.RequireFromString("12.3")))

	none, err := repo.StatementsByPeriod(ctx, p, "amex")
	require.NoError(t, err)
	assert.Empty(t, none)

	holders, err := repo.StatementHolders(ctx, "doc1", "")
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "ANA", holders[0].Holder)

	only, err := repo.StatementHolders(ctx, "doc1", "LUIS")
	require.NoError(t, err)
	require.Len(t, only, 1)

	lines, err := repo.StatementLines(ctx, "doc1", "ANA")
	require.NoError(t, err)
	require.Len(t, lines, 3, "identical lines are kept")
	assert.Equal(t, 0, lines[0].Position)
	assert.Equal(t, lines[0].Description, lines[1].Description)
	assert.Equal(t, core.CurrencyUSD, lines[2].Currency)
	assert.Equal(t, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), lines[0].Date)
}

func TestCreateStatement_RollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := sampleStatement("broken")
	s.Holders[1].Holder = "ANA" // primary key violation on the second holder

	require.Error(t, repo.CreateStatement(ctx, s))

	exists, err := repo.StatementExists(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAvailableStatements(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateStatement(ctx, sampleStatement("doc1")))
	other := sampleStatement("doc2")
	other.Holders = other.Holders[1:]
	require.NoError(t, repo.CreateStatement(ctx, other))
	master := sampleStatement("doc3")
	master.CardType = "master"
	require.NoError(t, repo.CreateStatement(ctx, master))

	got, err := repo.AvailableStatements(ctx, core.Period{Year: 2025, Month: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"visa":   {"ANA", "LUIS"},
		"master": {"ANA", "LUIS"},
	}, got)

	empty, err := repo.AvailableStatements(ctx, core.Period{Year: 2025, Month: 3})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
