package http

import (
	"net/http"

	"finanzas/internal/services"
	"finanzas/internal/sheets"
)

// Sync routes always answer 200: job failures are part of the result body.
func (s *Server) handleSync(feed sheets.Feed) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().Data(s.deps.Sync.Run(r.Context(), feed)).Write(w)
	})
}

type syncAllResponse struct {
	Results []services.SyncResult `json:"results"`
	Failed  int                   `json:"failed"`
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	resp := syncAllResponse{Results: s.deps.Sync.RunAll(r.Context())}
	for _, res := range resp.Results {
		if res.Failed() {
			resp.Failed++
		}
	}
	NewJSONResponse().Data(resp).Write(w)
}

func (s *Server) handleSyncResumes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Resumes == nil {
		writeError(w, r, services.ErrParserNotConfigured)
		return
	}
	report, err := s.deps.Resumes.Import(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(report).Write(w)
}
