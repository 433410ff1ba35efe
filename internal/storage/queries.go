package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"finanzas/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ledgerTable maps a transaction kind to its table and tag column.
type ledgerTable struct {
	name      string
	tagColumn string
}

func tableFor(kind core.Kind) (ledgerTable, error) {
	switch kind {
	case core.KindExpense:
		return ledgerTable{name: "expenses", tagColumn: "tipo"}, nil
	case core.KindIncome:
		return ledgerTable{name: "incomes", tagColumn: "moneda"}, nil
	}
	return ledgerTable{}, fmt.Errorf("%w: %q", core.ErrUnknownKind, kind)
}

type TransactionRow struct {
	UUID          string
	MarcaTemporal string
	Descripcion   string
	Importe       string
	Tag           string
	Source        string
}

type InsertTransactionParams struct {
	UUID          string
	MarcaTemporal string
	Descripcion   string
	Importe       string
	Tag           string
	Source        string
}

// InsertTransaction returns the number of affected rows: 0 when the
// identifier already exists.
func (q *Queries) InsertTransaction(ctx context.Context, t ledgerTable, arg InsertTransactionParams) (int64, error) {
	query := fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (uuid, marca_temporal, descripcion, importe, %s, source) VALUES (?, ?, ?, ?, ?, ?)`,
		t.name, t.tagColumn)
	res, err := q.db.ExecContext(ctx, query, arg.UUID, arg.MarcaTemporal, arg.Descripcion, arg.Importe, arg.Tag, arg.Source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteTransactions(ctx context.Context, t ledgerTable, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`DELETE FROM %s WHERE uuid IN (%s)`, t.name, placeholders)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReassignTransactions moves rows synced from another feed under source.
// Rows created through the API keep their source.
func (q *Queries) ReassignTransactions(ctx context.Context, t ledgerTable, source string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`UPDATE %s SET source = ? WHERE uuid IN (%s) AND source <> ? AND source <> ?`, t.name, placeholders)
	args := make([]interface{}, 0, len(ids)+3)
	args = append(args, source)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, source, core.SourceAPI)
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListTransactionIDs(ctx context.Context, t ledgerTable, source string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(`SELECT uuid FROM %s WHERE source = ?`, t.name), source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

func (q *Queries) ListTransactionsByPeriod(ctx context.Context, t ledgerTable, year, month string) ([]TransactionRow, error) {
	query := fmt.Sprintf(`SELECT uuid, marca_temporal, descripcion, importe, %s, source
FROM %s
WHERE strftime('%%Y', marca_temporal) = ? AND strftime('%%m', marca_temporal) = ?
ORDER BY marca_temporal, uuid`, t.tagColumn, t.name)
	rows, err := q.db.QueryContext(ctx, query, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(&i.UUID, &i.MarcaTemporal, &i.Descripcion, &i.Importe, &i.Tag, &i.Source); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const statementExists = `SELECT EXISTS(SELECT 1 FROM statements WHERE document_id = ?)`

func (q *Queries) StatementExists(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, statementExists, documentID).Scan(&exists)
	return exists, err
}

const insertStatement = `INSERT INTO statements (document_id, card_type, period, total_ars, total_usd) VALUES (?, ?, ?, ?, ?)`

type StatementRow struct {
	DocumentID string
	CardType   string
	Period     string
	TotalARS   string
	TotalUSD   string
}

func (q *Queries) InsertStatement(ctx context.Context, arg StatementRow) error {
	_, err := q.db.ExecContext(ctx, insertStatement, arg.DocumentID, arg.CardType, arg.Period, arg.TotalARS, arg.TotalUSD)
	return err
}

const insertStatementHolder = `INSERT INTO statement_holders (document_id, holder, total_ars, total_usd) VALUES (?, ?, ?, ?)`

type HolderRow struct {
	DocumentID string
	Holder     string
	TotalARS   string
	TotalUSD   string
}

func (q *Queries) InsertStatementHolder(ctx context.Context, arg HolderRow) error {
	_, err := q.db.ExecContext(ctx, insertStatementHolder, arg.DocumentID, arg.Holder, arg.TotalARS, arg.TotalUSD)
	return err
}

const insertStatementLine = `INSERT INTO statement_lines (document_id, holder, position, line_date, description, amount, currency) VALUES (?, ?, ?, ?, ?, ?, ?)`

type LineRow struct {
	DocumentID  string
	Holder      string
	Position    int64
	LineDate    string
	Description string
	Amount      string
	Currency    string
}

func (q *Queries) InsertStatementLine(ctx context.Context, arg LineRow) error {
	_, err := q.db.ExecContext(ctx, insertStatementLine,
		arg.DocumentID, arg.Holder, arg.Position, arg.LineDate, arg.Description, arg.Amount, arg.Currency)
	return err
}

const listStatementsByPeriod = `SELECT document_id, card_type, period, total_ars, total_usd
FROM statements
WHERE period = ? AND (? = '' OR card_type = ?)
ORDER BY card_type, created_at, document_id`

func (q *Queries) ListStatementsByPeriod(ctx context.Context, period, cardType string) ([]StatementRow, error) {
	rows, err := q.db.QueryContext(ctx, listStatementsByPeriod, period, cardType, cardType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StatementRow
	for rows.Next() {
		var i StatementRow
		if err := rows.Scan(&i.DocumentID, &i.CardType, &i.Period, &i.TotalARS, &i.TotalUSD); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listStatementHolders = `SELECT document_id, holder, total_ars, total_usd
FROM statement_holders
WHERE document_id = ? AND (? = '' OR holder = ?)
ORDER BY holder`

func (q *Queries) ListStatementHolders(ctx context.Context, documentID, holder string) ([]HolderRow, error) {
	rows, err := q.db.QueryContext(ctx, listStatementHolders, documentID, holder, holder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HolderRow
	for rows.Next() {
		var i HolderRow
		if err := rows.Scan(&i.DocumentID, &i.Holder, &i.TotalARS, &i.TotalUSD); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listStatementLines = `SELECT document_id, holder, position, line_date, description, amount, currency
FROM statement_lines
WHERE document_id = ? AND holder = ?
ORDER BY position`

func (q *Queries) ListStatementLines(ctx context.Context, documentID, holder string) ([]LineRow, error) {
	rows, err := q.db.QueryContext(ctx, listStatementLines, documentID, holder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LineRow
	for rows.Next() {
		var i LineRow
		if err := rows.Scan(&i.DocumentID, &i.Holder, &i.Position, &i.LineDate, &i.Description, &i.Amount, &i.Currency); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listAvailableStatementHolders = `SELECT s.card_type, h.holder
FROM statements s
JOIN statement_holders h ON h.document_id = s.document_id
WHERE s.period = ?`

type CardHolderRow struct {
	CardType string
	Holder   string
}

func (q *Queries) ListAvailableStatementHolders(ctx context.Context, period string) ([]CardHolderRow, error) {
	rows, err := q.db.QueryContext(ctx, listAvailableStatementHolders, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CardHolderRow
	for rows.Next() {
		var i CardHolderRow
		if err := rows.Scan(&i.CardType, &i.Holder); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
