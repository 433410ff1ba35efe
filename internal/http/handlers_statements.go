package http

import (
	"net/http"
	"strings"

	"finanzas/internal/core"
)

type ingestResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	CardType   string `json:"card_type"`
	Period     string `json:"period"`
}

// handleLoadCardResume ingests a statement JSON body. The card type comes
// from the card_type header; an optional period header (MM-YYYY) pins the
// statement month.
func (s *Server) handleLoadCardResume(w http.ResponseWriter, r *http.Request) {
	cardType := sanitizeInput(r.Header.Get("card_type"))
	if cardType == "" {
		BadRequestError("card_type header is required").Write(w)
		return
	}

	var period core.Period
	if v := strings.TrimSpace(r.Header.Get("period")); v != "" {
		p, err := core.ParseStatementPeriod(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		period = p
	}

	body, err := readBody(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	stmt, err := s.deps.Statements.Ingest(r.Context(), body, cardType, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(ingestResponse{
		Status:     "Resumen cargado correctamente",
		DocumentID: stmt.DocumentID,
		CardType:   stmt.CardType,
		Period:     stmt.Period.String(),
	}).Write(w)
}

func (s *Server) handleResumeExpenses(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Statements.Summarize(r.Context(), p, r.PathValue("card_type"), r.PathValue("holder"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(summary).Write(w)
}

func (s *Server) handleAvailableResumes(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	available, err := s.deps.Statements.ListAvailable(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(available).Write(w)
}
