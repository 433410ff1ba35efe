package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
)

// LedgerRepository persists flat expense and income rows.
type LedgerRepository interface {
	InsertTransactions(ctx context.Context, kind core.Kind, txs []core.Transaction) ([]core.RowOutcome, error)
	CreateTransaction(ctx context.Context, kind core.Kind, tx core.Transaction) error
	DeleteTransactions(ctx context.Context, kind core.Kind, ids []string) (int64, error)
	ReassignTransactions(ctx context.Context, kind core.Kind, source string, ids []string) (int64, error)
	TransactionIDs(ctx context.Context, kind core.Kind, source string) (map[string]struct{}, error)
	TransactionsByPeriod(ctx context.Context, kind core.Kind, p core.Period) ([]core.Transaction, error)
}

// RateProvider returns the ARS per USD buy rate.
type RateProvider interface {
	ReferenceRate(ctx context.Context) (decimal.Decimal, error)
}

// Ledger parses, stores and reports expense and income rows.
type Ledger struct {
	repo   LedgerRepository
	rates  RateProvider
	logger *applog.Logger
}

func NewLedger(repo LedgerRepository, rates RateProvider, logger *applog.Logger) *Ledger {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Ledger{
		repo:   repo,
		rates:  rates,
		logger: logger.WithComponent(applog.ComponentLedger),
	}
}

// InsertBatch parses feed rows and stores the valid ones under source.
// Unparseable rows are logged and reported as invalid; duplicates are
// reported, never overwritten. The returned error is reserved for storage
// failures.
func (l *Ledger) InsertBatch(ctx context.Context, kind core.Kind, source string, rows []core.FeedRow) (core.BatchReport, error) {
	var report core.BatchReport
	if !kind.IsValid() {
		return report, fmt.Errorf("%w: %q", core.ErrUnknownKind, kind)
	}

	outcomes := make([]core.RowOutcome, len(rows))
	valid := make([]core.Transaction, 0, len(rows))
	positions := make([]int, 0, len(rows))
	for i, row := range rows {
		tx, err := core.ParseFeedRow(kind, row)
		if err != nil {
			l.logger.WarnContext(ctx, "Skipping malformed feed row",
				applog.NewFields().WithTransaction(kind.String(), row.ID()).WithError(err).ToSlice()...)
			outcomes[i] = core.RowOutcome{ID: row.ID(), Outcome: core.OutcomeInvalid, Error: err.Error()}
			continue
		}
		tx.Source = source
		valid = append(valid, tx)
		positions = append(positions, i)
	}

	stored, err := l.repo.InsertTransactions(ctx, kind, valid)
	for j, o := range stored {
		outcomes[positions[j]] = o
	}
	for _, o := range outcomes {
		if o.Outcome != "" {
			report.Add(o)
		}
	}
	if err != nil {
		return report, fmt.Errorf("insert %s batch: %w", kind, err)
	}

	l.logger.InfoContext(ctx, "Batch stored",
		applog.FieldKind, kind,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		applog.FieldInvalid, report.Invalid)
	return report, nil
}

// Create stores one transaction submitted directly. Without an identifier
// the content hash of the row becomes its identifier, so resubmitting the
// same content is rejected with core.ErrDuplicate. Direct rows are never
// removed by a sync.
func (l *Ledger) Create(ctx context.Context, kind core.Kind, tx core.Transaction) (core.Transaction, error) {
	if !kind.IsValid() {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrUnknownKind, kind)
	}
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Tag = strings.TrimSpace(tx.Tag)
	if kind == core.KindIncome {
		tx.Tag = core.NormalizeCurrency(tx.Tag)
	}
	tx.Timestamp = tx.Timestamp.UTC().Truncate(time.Second)
	tx.Source = core.SourceAPI
	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = ContentHash(tx)
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := l.repo.CreateTransaction(ctx, kind, tx); err != nil {
		return core.Transaction{}, err
	}
	l.logger.InfoContext(ctx, "Transaction created",
		applog.NewFields().WithTransaction(kind.String(), tx.ID).WithOperation(applog.OpCreate).ToSlice()...)
	return tx, nil
}

// ContentHash identifies a row by its timestamp, description, amount and tag.
func ContentHash(tx core.Transaction) string {
	raw := fmt.Sprintf("%s-%s-%s-%s",
		tx.Timestamp.UTC().Format("2006-01-02T15:04:05"), tx.Description, tx.Amount.String(), tx.Tag)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ExpenseReport lists the month's expenses with their grand total and the
// total per category in first-seen order.
func (l *Ledger) ExpenseReport(ctx context.Context, p core.Period) (core.ExpenseReport, error) {
	txs, err := l.repo.TransactionsByPeriod(ctx, core.KindExpense, p)
	if err != nil {
		return core.ExpenseReport{}, err
	}

	report := core.ExpenseReport{
		Year:       p.Year,
		Month:      p.Month,
		Expenses:   make([]core.ExpenseView, 0, len(txs)),
		ByCategory: []core.CategoryAmount{},
	}

	total := decimal.Zero
	var order []string
	byCategory := map[string]decimal.Decimal{}
	for _, tx := range txs {
		total = total.Add(tx.Amount)
		if _, ok := byCategory[tx.Tag]; !ok {
			order = append(order, tx.Tag)
		}
		byCategory[tx.Tag] = byCategory[tx.Tag].Add(tx.Amount)

		report.Expenses = append(report.Expenses, core.ExpenseView{
			ID:          tx.ID,
			Timestamp:   tx.Timestamp.Format(core.StoreTimestampLayout),
			Description: tx.Description,
			Amount:      core.FormatAmount(tx.Amount),
			Category:    tx.Tag,
		})
	}

	report.Total = core.FormatAmount(total)
	for _, cat := range order {
		report.ByCategory = append(report.ByCategory, core.CategoryAmount{
			Category: cat,
			Total:    core.FormatAmount(byCategory[cat]),
		})
	}
	return report, nil
}

// IncomeReport lists the month's incomes with each amount rendered in both
// ARS and USD at the current reference rate. The rate is fetched once per
// report and not at all for an empty month.
func (l *Ledger) IncomeReport(ctx context.Context, p core.Period) (core.IncomeReport, error) {
	txs, err := l.repo.TransactionsByPeriod(ctx, core.KindIncome, p)
	if err != nil {
		return core.IncomeReport{}, err
	}

	report := core.IncomeReport{
		Year:     p.Year,
		Month:    p.Month,
		Incomes:  make([]core.IncomeView, 0, len(txs)),
		TotalARS: core.FormatAmount(decimal.Zero),
		TotalUSD: core.FormatAmount(decimal.Zero),
	}
	if len(txs) == 0 {
		return report, nil
	}

	rate, err := l.rates.ReferenceRate(ctx)
	if err != nil {
		return core.IncomeReport{}, fmt.Errorf("income report %s: %w", p, err)
	}
	report.Rate = core.FormatAmount(rate)

	totalARS, totalUSD := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		ars, usd := l.convert(ctx, tx, rate)
		totalARS = totalARS.Add(ars)
		totalUSD = totalUSD.Add(usd)
		report.Incomes = append(report.Incomes, core.IncomeView{
			ID:          tx.ID,
			Timestamp:   tx.Timestamp.Format(core.StoreTimestampLayout),
			Description: tx.Description,
			Amount:      core.FormatAmount(tx.Amount),
			Currency:    core.NormalizeCurrency(tx.Tag),
			AmountARS:   core.FormatAmount(ars),
			AmountUSD:   core.FormatAmount(usd),
		})
	}
	report.TotalARS = core.FormatAmount(totalARS)
	report.TotalUSD = core.FormatAmount(totalUSD)
	return report, nil
}

// convert returns the amount in ARS and USD. Currencies other than USD are
// treated as ARS.
func (l *Ledger) convert(ctx context.Context, tx core.Transaction, rate decimal.Decimal) (ars, usd decimal.Decimal) {
	switch currency := core.NormalizeCurrency(tx.Tag); currency {
	case core.CurrencyUSD:
		return tx.Amount.Mul(rate), tx.Amount
	case core.CurrencyARS:
	default:
		l.logger.WarnContext(ctx, "Unknown income currency, treating as ARS",
			applog.FieldTransactionID, tx.ID, "currency", currency)
	}
	return tx.Amount, tx.Amount.Div(rate)
}
