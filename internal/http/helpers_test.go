package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := map[string]time.Time{
		"2025-03-10T12:00:00Z":      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		"2025-03-10T12:00:00-03:00": time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
		"2025-03-10 12:00:00":       time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		"2025-03-10":                time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		"10/03/2025 12:00:00":       time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	for in, want := range tests {
		got, err := parseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}

	_, err := parseTimestamp("mañana")
	assert.Error(t, err)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb", sanitizeInput("  a\x00\tb\x07 "))
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.9", extractClientIP(req))

	req.RemoteAddr = "10.0.0.2:4000"
	assert.Equal(t, "198.51.100.1", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", extractClientIP(req))
}

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	ConflictError("duplicate").Header("X-Test", "1").Write(rr)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Test"))
	assert.JSONEq(t, `{"error":"duplicate"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	NewJSONResponse().Data(func() {}).Write(rr)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
