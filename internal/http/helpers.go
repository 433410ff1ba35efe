package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/rates"
	"finanzas/internal/services"
)

const maxBodyBytes = 10 << 20

// pathPeriod reads the {year} and {month} path values.
func pathPeriod(r *http.Request) (core.Period, error) {
	return core.ParsePeriod(r.PathValue("year"), r.PathValue("month"))
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts ISO 8601 and the spreadsheet layout. Values without
// a zone are taken as UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return core.ParseFeedTimestamp(s)
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, core.ErrDuplicateStatement):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidPeriod), errors.Is(err, core.ErrUnknownKind):
		return http.StatusBadRequest
	case services.IsStatementRejection(err),
		errors.Is(err, core.ErrMissingID),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrEmptyTag):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rates.ErrRateUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrParserNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError logs err and sends it as JSON. Internal failures are reported
// without their details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := applog.FromContext(r.Context())
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err, applog.FieldPath, r.URL.Path)
		msg = "internal error"
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldError, err, applog.FieldStatusCode, status, applog.FieldPath, r.URL.Path)
	}
	ErrorResponse(status, msg).Write(w)
}
