package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"

	_ "modernc.org/sqlite"
)

// deleteChunkSize keeps IN (...) lists under SQLite's bound-parameter limit.
const deleteChunkSize = 500

const lineDateLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertTransactions inserts each row independently with insert-or-ignore
// semantics. A duplicate never rolls back rows inserted before it.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, kind core.Kind, txs []core.Transaction) ([]core.RowOutcome, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	outcomes := make([]core.RowOutcome, 0, len(txs))
	for _, tx := range txs {
		affected, err := r.queries.InsertTransaction(ctx, table, toInsertParams(tx))
		if err != nil {
			return outcomes, fmt.Errorf("insert %s %s: %w", kind, tx.ID, err)
		}
		outcome := core.OutcomeInserted
		if affected == 0 {
			outcome = core.OutcomeDuplicate
		}
		outcomes = append(outcomes, core.RowOutcome{ID: tx.ID, Outcome: outcome})
	}
	return outcomes, nil
}

// CreateTransaction inserts a single row and reports core.ErrDuplicate when
// the identifier already exists.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, kind core.Kind, tx core.Transaction) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	affected, err := r.queries.InsertTransaction(ctx, table, toInsertParams(tx))
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", kind, tx.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, tx.ID, core.ErrDuplicate)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"kind", kind,
		"id", tx.ID,
		"description", tx.Description,
		"amount", tx.Amount.String())
	return nil
}

func toInsertParams(tx core.Transaction) InsertTransactionParams {
	return InsertTransactionParams{
		UUID:          tx.ID,
		MarcaTemporal: tx.Timestamp.UTC().Format(core.StoreTimestampLayout),
		Descripcion:   tx.Description,
		Importe:       tx.Amount.String(),
		Tag:           tx.Tag,
		Source:        tx.Source,
	}
}

// DeleteTransactions removes rows by identifier. Unknown ids are ignored.
func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, kind core.Kind, ids []string) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var total int64
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))
		n, err := r.queries.DeleteTransactions(ctx, table, ids[start:end])
		if err != nil {
			return total, fmt.Errorf("delete %s batch: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// ReassignTransactions hands rows stored by another feed over to source and
// returns how many moved. API rows are never reassigned.
func (r *SQLiteRepository) ReassignTransactions(ctx context.Context, kind core.Kind, source string, ids []string) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var total int64
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))
		n, err := r.queries.ReassignTransactions(ctx, table, source, ids[start:end])
		if err != nil {
			return total, fmt.Errorf("reassign %s batch: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// TransactionIDs returns the identifiers stored from one source.
func (r *SQLiteRepository) TransactionIDs(ctx context.Context, kind core.Kind, source string) (map[string]struct{}, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	ids, err := r.queries.ListTransactionIDs(ctx, table, source)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", kind, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// TransactionsByPeriod returns the rows whose timestamp falls in the month.
func (r *SQLiteRepository) TransactionsByPeriod(ctx context.Context, kind core.Kind, p core.Period) ([]core.Transaction, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.queries.ListTransactionsByPeriod(ctx, table, p.YearString(), p.MonthString())
	if err != nil {
		return nil, fmt.Errorf("list %s for %s: %w", kind, p, err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		ts, err := time.ParseInLocation(core.StoreTimestampLayout, row.MarcaTemporal, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s %s: parse timestamp %q: %w", kind, row.UUID, row.MarcaTemporal, err)
		}
		amount, err := decimal.NewFromString(row.Importe)
		if err != nil {
			return nil, fmt.Errorf("%s %s: parse amount %q: %w", kind, row.UUID, row.Importe, err)
		}
		out = append(out, core.Transaction{
			ID:          row.UUID,
			Timestamp:   ts,
			Description: row.Descripcion,
			Amount:      amount,
			Tag:         row.Tag,
			Source:      row.Source,
		})
	}
	return out, nil
}

// CreateStatement persists the document, its holders and their lines in a
// single transaction.
func (r *SQLiteRepository) CreateStatement(ctx context.Context, s core.Statement) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin statement tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Failed to roll back statement", "document_id", s.DocumentID, "error", rbErr)
			}
		}
	}()

	q := r.queries.WithTx(tx)

	exists, err := q.StatementExists(ctx, s.DocumentID)
	if err != nil {
		return fmt.Errorf("check statement %s: %w", s.DocumentID, err)
	}
	if exists {
		return fmt.Errorf("statement %s: %w", s.DocumentID, core.ErrDuplicateStatement)
	}

	if err = q.InsertStatement(ctx, StatementRow{
		DocumentID: s.DocumentID,
		CardType:   s.CardType,
		Period:     s.Period.FirstDay().Format(lineDateLayout),
		TotalARS:   s.TotalARS.String(),
		TotalUSD:   s.TotalUSD.String(),
	}); err != nil {
		return fmt.Errorf("insert statement %s: %w", s.DocumentID, err)
	}

	for _, h := range s.Holders {
		if err = q.InsertStatementHolder(ctx, HolderRow{
			DocumentID: s.DocumentID,
			Holder:     h.Holder,
			TotalARS:   h.TotalARS.String(),
			TotalUSD:   h.TotalUSD.String(),
		}); err != nil {
			return fmt.Errorf("insert holder %q: %w", h.Holder, err)
		}
		for _, l := range h.Lines {
			lineDate := ""
			if !l.Date.IsZero() {
				lineDate = l.Date.Format(lineDateLayout)
			}
			if err = q.InsertStatementLine(ctx, LineRow{
				DocumentID:  s.DocumentID,
				Holder:      h.Holder,
				Position:    int64(l.Position),
				LineDate:    lineDate,
				Description: l.Description,
				Amount:      l.Amount.String(),
				Currency:    l.Currency,
			}); err != nil {
				return fmt.Errorf("insert line %d of holder %q: %w", l.Position, h.Holder, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit statement %s: %w", s.DocumentID, err)
	}

	slog.InfoContext(ctx, "Statement saved to SQLite",
		"document_id", s.DocumentID,
		"card_type", s.CardType,
		"period", s.Period.String(),
		"holders", len(s.Holders))
	return nil
}

// StatementExists reports whether a document with the given hash is stored.
func (r *SQLiteRepository) StatementExists(ctx context.Context, documentID string) (bool, error) {
	exists, err := r.queries.StatementExists(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("check statement %s: %w", documentID, err)
	}
	return exists, nil
}

// StatementsByPeriod returns statement headers for the month, optionally
// restricted to one card type. Holders are not loaded.
func (r *SQLiteRepository) StatementsByPeriod(ctx context.Context, p core.Period, cardType string) ([]core.Statement, error) {
	rows, err := r.queries.ListStatementsByPeriod(ctx, p.FirstDay().Format(lineDateLayout), cardType)
	if err != nil {
		return nil, fmt.Errorf("list statements for %s: %w", p, err)
	}
	out := make([]core.Statement, 0, len(rows))
	for _, row := range rows {
		ars, usd, err := parseTotals(row.TotalARS, row.TotalUSD)
		if err != nil {
			return nil, fmt.Errorf("statement %s: %w", row.DocumentID, err)
		}
		period, err := time.Parse(lineDateLayout, row.Period)
		if err != nil {
			return nil, fmt.Errorf("statement %s: parse period %q: %w", row.DocumentID, row.Period, err)
		}
		out = append(out, core.Statement{
			DocumentID: row.DocumentID,
			CardType:   row.CardType,
			Period:     core.PeriodOf(period),
			TotalARS:   ars,
			TotalUSD:   usd,
		})
	}
	return out, nil
}

// StatementHolders returns the holders of a document, optionally filtered by
// name. Lines are not loaded.
func (r *SQLiteRepository) StatementHolders(ctx context.Context, documentID, holder string) ([]core.HolderSummary, error) {
	rows, err := r.queries.ListStatementHolders(ctx, documentID, holder)
	if err != nil {
		return nil, fmt.Errorf("list holders of %s: %w", documentID, err)
	}
	out := make([]core.HolderSummary, 0, len(rows))
	for _, row := range rows {
		ars, usd, err := parseTotals(row.TotalARS, row.TotalUSD)
		if err != nil {
			return nil, fmt.Errorf("holder %q of %s: %w", row.Holder, documentID, err)
		}
		out = append(out, core.HolderSummary{Holder: row.Holder, TotalARS: ars, TotalUSD: usd})
	}
	return out, nil
}

// StatementLines returns the lines of one holder in statement order.
func (r *SQLiteRepository) StatementLines(ctx context.Context, documentID, holder string) ([]core.ExpenseLine, error) {
	rows, err := r.queries.ListStatementLines(ctx, documentID, holder)
	if err != nil {
		return nil, fmt.Errorf("list lines of %s/%s: %w", documentID, holder, err)
	}
	out := make([]core.ExpenseLine, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("line %d of %s/%s: parse amount %q: %w", row.Position, documentID, holder, row.Amount, err)
		}
		var date time.Time
		if row.LineDate != "" {
			if date, err = time.Parse(lineDateLayout, row.LineDate); err != nil {
				return nil, fmt.Errorf("line %d of %s/%s: parse date %q: %w", row.Position, documentID, holder, row.LineDate, err)
			}
		}
		out = append(out, core.ExpenseLine{
			Position:    int(row.Position),
			Date:        date,
			Description: row.Description,
			Amount:      amount,
			Currency:    row.Currency,
		})
	}
	return out, nil
}

// AvailableStatements groups the holder names of the month's statements by
// card type. Holder names are deduplicated and sorted.
func (r *SQLiteRepository) AvailableStatements(ctx context.Context, p core.Period) (map[string][]string, error) {
	rows, err := r.queries.ListAvailableStatementHolders(ctx, p.FirstDay().Format(lineDateLayout))
	if err != nil {
		return nil, fmt.Errorf("list available statements for %s: %w", p, err)
	}

	sets := map[string]map[string]struct{}{}
	for _, row := range rows {
		if sets[row.CardType] == nil {
			sets[row.CardType] = map[string]struct{}{}
		}
		sets[row.CardType][row.Holder] = struct{}{}
	}

	out := make(map[string][]string, len(sets))
	for card, holders := range sets {
		names := make([]string, 0, len(holders))
		for h := range holders {
			names = append(names, h)
		}
		sort.Strings(names)
		out[card] = names
	}
	return out, nil
}

func parseTotals(ars, usd string) (decimal.Decimal, decimal.Decimal, error) {
	a, err := decimal.NewFromString(ars)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse total_ars %q: %w", ars, err)
	}
	u, err := decimal.NewFromString(usd)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse total_usd %q: %w", usd, err)
	}
	return a, u, nil
}
