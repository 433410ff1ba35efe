package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

// transactionRequest accepts the English field names and the Spanish ones
// used by the spreadsheets.
type transactionRequest struct {
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Description string              `json:"description"`
	Amount      decimal.NullDecimal `json:"amount"`
	Category    string              `json:"category"`
	Currency    string              `json:"currency"`

	MarcaTemporal string              `json:"marca_temporal"`
	Descripcion   string              `json:"descripcion"`
	Importe       decimal.NullDecimal `json:"importe"`
	Tipo          string              `json:"tipo"`
	Moneda        string              `json:"moneda"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (req transactionRequest) toTransaction(kind core.Kind, now func() time.Time) (core.Transaction, error) {
	tx := core.Transaction{
		ID:          sanitizeInput(req.ID),
		Description: sanitizeInput(firstNonEmpty(req.Description, req.Descripcion)),
	}

	switch {
	case req.Amount.Valid:
		tx.Amount = req.Amount.Decimal
	case req.Importe.Valid:
		tx.Amount = req.Importe.Decimal
	default:
		return core.Transaction{}, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}

	if kind == core.KindIncome {
		tx.Tag = sanitizeInput(firstNonEmpty(req.Currency, req.Moneda, core.CurrencyARS))
	} else {
		tx.Tag = sanitizeInput(firstNonEmpty(req.Category, req.Tipo))
	}

	ts := firstNonEmpty(req.Timestamp, req.MarcaTemporal)
	if ts == "" {
		tx.Timestamp = now()
		return tx, nil
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Timestamp = parsed
	return tx, nil
}

type createdResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (s *Server) handleCreate(kind core.Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		tx, err := req.toTransaction(kind, s.now)
		if err != nil {
			writeError(w, r, err)
			return
		}
		created, err := s.deps.Ledger.Create(r.Context(), kind, tx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Data(createdResponse{
			Status: "Registro agregado correctamente",
			ID:     created.ID,
		}).Write(w)
	})
}

func (s *Server) handleExpenseReport(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.deps.Ledger.ExpenseReport(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleIncomeReport(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.deps.Ledger.IncomeReport(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}
