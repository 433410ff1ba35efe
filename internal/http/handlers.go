package http

import (
	"context"
	"net/http"
	"time"

	applog "finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/trace"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready only when the database answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]string{"database": "ok"}
	if s.deps.DB == nil {
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.DB.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		checks["database"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}
	if s.deps.Resumes == nil {
		checks["pdf_parser"] = "not_configured"
	} else {
		checks["pdf_parser"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

type metricsResponse struct {
	Uptime    string            `json:"uptime"`
	Requests  trace.Metrics     `json:"requests"`
	RateLimit ratelimit.Metrics `json:"rate_limit"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(metricsResponse{
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Requests:  s.traceMiddleware.GetMetrics(),
		RateLimit: s.rateLimiter.GetMetrics(),
	}).Write(w)
}
