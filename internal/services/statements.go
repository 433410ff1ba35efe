package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
)

// StatementRepository persists statement documents with their holders and lines.
type StatementRepository interface {
	StatementExists(ctx context.Context, documentID string) (bool, error)
	CreateStatement(ctx context.Context, s core.Statement) error
	StatementsByPeriod(ctx context.Context, p core.Period, cardType string) ([]core.Statement, error)
	StatementHolders(ctx context.Context, documentID, holder string) ([]core.HolderSummary, error)
	StatementLines(ctx context.Context, documentID, holder string) ([]core.ExpenseLine, error)
	AvailableStatements(ctx context.Context, p core.Period) (map[string][]string, error)
}

type Statements struct {
	repo   StatementRepository
	logger *applog.Logger
	now    func() time.Time
}

func NewStatements(repo StatementRepository, logger *applog.Logger) *Statements {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Statements{
		repo:   repo,
		logger: logger.WithComponent(applog.ComponentStatements),
		now:    time.Now,
	}
}

// DocumentID is the content hash identifying a raw statement payload.
func DocumentID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Ingest stores a statement payload of the form
//
//	{"<holder>": {"Total": {"pesos": "1.234,56", "dolares": "10,00"},
//	              "Detail": [{"fechaTimestamp": ..., "descripcion": ..., "importe": ...}]},
//	 "Total": {"Total": {"pesos": ..., "dolares": ...}}}
//
// The "Total" entry declares the document totals, which every holder also
// receives. Byte-identical payloads are rejected with core.ErrDuplicateStatement.
// A zero period is derived from the latest line date, or the current month.
func (s *Statements) Ingest(ctx context.Context, raw []byte, cardType string, period core.Period) (core.Statement, error) {
	cardType = strings.TrimSpace(cardType)
	if cardType == "" {
		return core.Statement{}, fmt.Errorf("%w: missing card type", core.ErrInvalidStatement)
	}

	docID := DocumentID(raw)
	exists, err := s.repo.StatementExists(ctx, docID)
	if err != nil {
		return core.Statement{}, err
	}
	if exists {
		return core.Statement{}, fmt.Errorf("statement %s: %w", docID, core.ErrDuplicateStatement)
	}

	stmt, err := decodeStatement(raw)
	if err != nil {
		return core.Statement{}, err
	}
	stmt.DocumentID = docID
	stmt.CardType = cardType
	stmt.Period = period
	if stmt.Period.IsZero() {
		stmt.Period = s.derivePeriod(stmt)
	}
	if !stmt.hasTotals {
		s.logger.WarnContext(ctx, "Statement has no Total entry, declaring zero totals",
			applog.NewFields().WithStatement(docID, cardType).ToSlice()...)
	}

	if err := s.repo.CreateStatement(ctx, stmt.Statement); err != nil {
		return core.Statement{}, err
	}

	s.logger.InfoContext(ctx, "Statement ingested",
		applog.NewFields().
			WithStatement(docID, cardType).
			WithPeriod(stmt.Period.Year, stmt.Period.Month).
			WithOperation(applog.OpIngest).ToSlice()...)
	return stmt.Statement, nil
}

func (s *Statements) derivePeriod(stmt decodedStatement) core.Period {
	var latest time.Time
	for _, h := range stmt.Holders {
		for _, l := range h.Lines {
			if l.Date.After(latest) {
				latest = l.Date
			}
		}
	}
	if latest.IsZero() {
		return core.PeriodOf(s.now())
	}
	return core.PeriodOf(latest)
}

// Summarize rebuilds the nested view of the month's statements, optionally
// restricted to one card type and one holder. Documents without a matching
// holder are left out when a holder is given. Grand totals add up the
// declared document totals.
func (s *Statements) Summarize(ctx context.Context, p core.Period, cardType, holder string) (core.StatementSummary, error) {
	docs, err := s.repo.StatementsByPeriod(ctx, p, strings.TrimSpace(cardType))
	if err != nil {
		return core.StatementSummary{}, err
	}

	summary := core.StatementSummary{Year: p.Year, Month: p.Month, Documents: []core.DocumentView{}}
	grandARS, grandUSD := decimal.Zero, decimal.Zero
	holder = strings.TrimSpace(holder)

	for _, doc := range docs {
		holders, err := s.repo.StatementHolders(ctx, doc.DocumentID, holder)
		if err != nil {
			return core.StatementSummary{}, err
		}
		if holder != "" && len(holders) == 0 {
			continue
		}

		view := core.DocumentView{
			DocumentID: doc.DocumentID,
			CardType:   doc.CardType,
			Period:     doc.Period.String(),
			TotalARS:   core.FormatAmount(doc.TotalARS),
			TotalUSD:   core.FormatAmount(doc.TotalUSD),
			Holders:    make([]core.HolderView, 0, len(holders)),
		}
		for _, h := range holders {
			lines, err := s.repo.StatementLines(ctx, doc.DocumentID, h.Holder)
			if err != nil {
				return core.StatementSummary{}, err
			}
			view.Holders = append(view.Holders, holderView(h, lines))
		}

		grandARS = grandARS.Add(doc.TotalARS)
		grandUSD = grandUSD.Add(doc.TotalUSD)
		summary.Documents = append(summary.Documents, view)
	}

	summary.TotalARS = core.FormatAmount(grandARS)
	summary.TotalUSD = core.FormatAmount(grandUSD)
	return summary, nil
}

func holderView(h core.HolderSummary, lines []core.ExpenseLine) core.HolderView {
	view := core.HolderView{
		Holder:   h.Holder,
		TotalARS: core.FormatAmount(h.TotalARS),
		TotalUSD: core.FormatAmount(h.TotalUSD),
		Lines:    make([]core.LineView, 0, len(lines)),
	}
	sumARS, sumUSD := decimal.Zero, decimal.Zero
	for _, l := range lines {
		lv := core.LineView{Position: l.Position, Description: l.Description}
		if !l.Date.IsZero() {
			lv.Date = l.Date.Format("2006-01-02")
		}
		if l.Currency == core.CurrencyUSD {
			lv.AmountUSD = core.FormatAmount(l.Amount)
			sumUSD = sumUSD.Add(l.Amount)
		} else {
			lv.AmountARS = core.FormatAmount(l.Amount)
			sumARS = sumARS.Add(l.Amount)
		}
		view.Lines = append(view.Lines, lv)
	}
	view.LinesTotalARS = core.FormatAmount(sumARS)
	view.LinesTotalUSD = core.FormatAmount(sumUSD)
	return view
}

// ListAvailable maps each card type with a statement in the month to its
// holder names.
func (s *Statements) ListAvailable(ctx context.Context, p core.Period) (map[string][]string, error) {
	out, err := s.repo.AvailableStatements(ctx, p)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string][]string{}
	}
	return out, nil
}

type decodedStatement struct {
	core.Statement
	hasTotals bool
}

type holderPayload struct {
	Total  *totalsPayload `json:"Total"`
	Detail []linePayload  `json:"Detail"`
}

type totalsPayload struct {
	Pesos   flexAmount `json:"pesos"`
	Dolares flexAmount `json:"dolares"`
}

type linePayload struct {
	Date        flexDate   `json:"fechaTimestamp"`
	Description string     `json:"descripcion"`
	Amount      flexAmount `json:"importe"`
}

func decodeStatement(raw []byte) (decodedStatement, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return decodedStatement{}, fmt.Errorf("%w: %v", core.ErrInvalidStatement, err)
	}

	var out decodedStatement
	names := make([]string, 0, len(entries))
	for name := range entries {
		if name != core.TotalHolder {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if rawTotal, ok := entries[core.TotalHolder]; ok {
		totals, err := decodeTotals(rawTotal)
		if err != nil {
			return decodedStatement{}, err
		}
		out.TotalARS = totals.Pesos.Decimal
		out.TotalUSD = totals.Dolares.Decimal
		out.hasTotals = true
	}

	seen := make(map[string]string, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return decodedStatement{}, fmt.Errorf("%w: empty holder name", core.ErrInvalidStatement)
		}
		if prev, dup := seen[trimmed]; dup {
			return decodedStatement{}, fmt.Errorf("%w: holders %q and %q collide", core.ErrInvalidStatement, prev, name)
		}
		seen[trimmed] = name

		var hp holderPayload
		if err := json.Unmarshal(entries[name], &hp); err != nil {
			return decodedStatement{}, fmt.Errorf("%w: holder %q: %v", core.ErrInvalidStatement, name, err)
		}
		holder := core.HolderSummary{
			Holder:   trimmed,
			TotalARS: out.TotalARS,
			TotalUSD: out.TotalUSD,
			Lines:    make([]core.ExpenseLine, 0, len(hp.Detail)),
		}
		for i, lp := range hp.Detail {
			holder.Lines = append(holder.Lines, core.ExpenseLine{
				Position:    i,
				Date:        lp.Date.Time,
				Description: strings.TrimSpace(lp.Description),
				Amount:      lp.Amount.Decimal,
				Currency:    core.InferLineCurrency(lp.Description),
			})
		}
		out.Holders = append(out.Holders, holder)
	}
	return out, nil
}

// decodeTotals accepts both {"Total": {"pesos", "dolares"}} and a bare
// {"pesos", "dolares"} under the Total entry.
func decodeTotals(raw json.RawMessage) (totalsPayload, error) {
	var wrapped holderPayload
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return totalsPayload{}, fmt.Errorf("%w: Total: %v", core.ErrInvalidStatement, err)
	}
	if wrapped.Total != nil {
		return *wrapped.Total, nil
	}
	var bare totalsPayload
	if err := json.Unmarshal(raw, &bare); err != nil {
		return totalsPayload{}, fmt.Errorf("%w: Total: %v", core.ErrInvalidStatement, err)
	}
	return bare, nil
}

// flexAmount decodes JSON numbers as-is and strings as European decimals
// ("1.234,56"). Null and empty strings decode to zero.
type flexAmount struct {
	decimal.Decimal
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		d, err := core.ParseEuropeanAmount(s)
		if err != nil {
			return fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidAmount, b)
	}
	a.Decimal = d
	return nil
}

var lineDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"02-01-2006",
	"02-01-06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// flexDate decodes statement line dates given as epoch numbers (seconds or
// milliseconds) or in one of lineDateLayouts. The time of day is dropped.
type flexDate struct {
	time.Time
}

func (d *flexDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		d.Time = truncateDay(epoch(n))
		return nil
	}
	for _, layout := range lineDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = truncateDay(t)
			return nil
		}
	}
	return fmt.Errorf("%w: line date %q", core.ErrInvalidTimestamp, s)
}

func epoch(n float64) time.Time {
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsStatementRejection reports whether err means the payload itself was refused.
func IsStatementRejection(err error) bool {
	return errors.Is(err, core.ErrInvalidStatement) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidTimestamp)
}
