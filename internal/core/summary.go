package core

// Outcome of a single row within a batch insert.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
)

// RowOutcome reports what happened to one row of a batch.
type RowOutcome struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// BatchReport collects per-row outcomes of a batch insert.
type BatchReport struct {
	Inserted   int          `json:"inserted"`
	Duplicates int          `json:"duplicates"`
	Invalid    int          `json:"invalid"`
	Rows       []RowOutcome `json:"rows,omitempty"`
}

// Add records one outcome and updates the counters.
func (b *BatchReport) Add(o RowOutcome) {
	switch o.Outcome {
	case OutcomeInserted:
		b.Inserted++
	case OutcomeDuplicate:
		b.Duplicates++
	case OutcomeInvalid:
		b.Invalid++
	}
	b.Rows = append(b.Rows, o)
}

// CategoryAmount represents a formatted amount aggregated by category name.
type CategoryAmount struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

// ExpenseView is one expense row as served to clients.
type ExpenseView struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

// ExpenseReport is the monthly expense listing.
type ExpenseReport struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Expenses   []ExpenseView    `json:"expenses"`
	Total      string           `json:"total"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// IncomeView is one income row with both currency renditions.
type IncomeView struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	AmountARS   string `json:"amount_ars"`
	AmountUSD   string `json:"amount_usd"`
}

// IncomeReport is the monthly income listing normalized with the reference rate.
type IncomeReport struct {
	Year     int          `json:"year"`
	Month    int          `json:"month"`
	Rate     string       `json:"rate,omitempty"`
	Incomes  []IncomeView `json:"incomes"`
	TotalARS string       `json:"total_ars"`
	TotalUSD string       `json:"total_usd"`
}

// LineView is one statement line. Only the field matching the line currency
// is filled.
type LineView struct {
	Position    int    `json:"position"`
	Date        string `json:"date"`
	Description string `json:"description"`
	AmountARS   string `json:"amount_ars"`
	AmountUSD   string `json:"amount_usd"`
}

// HolderView carries the declared holder totals next to the sum of its lines.
type HolderView struct {
	Holder        string     `json:"holder"`
	TotalARS      string     `json:"total_ars"`
	TotalUSD      string     `json:"total_usd"`
	LinesTotalARS string     `json:"lines_total_ars"`
	LinesTotalUSD string     `json:"lines_total_usd"`
	Lines         []LineView `json:"lines"`
}

// DocumentView is one statement with its holders.
type DocumentView struct {
	DocumentID string       `json:"document_id"`
	CardType   string       `json:"card_type"`
	Period     string       `json:"period"`
	TotalARS   string       `json:"total_ars"`
	TotalUSD   string       `json:"total_usd"`
	Holders    []HolderView `json:"holders"`
}

// StatementSummary is the nested read view over the statements of a month.
type StatementSummary struct {
	Year      int            `json:"year"`
	Month     int            `json:"month"`
	TotalARS  string         `json:"total_ars"`
	TotalUSD  string         `json:"total_usd"`
	Documents []DocumentView `json:"documents"`
}
