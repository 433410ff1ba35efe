package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "finanzas/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request ID in and out of the service.
	RequestIDHeader = "X-Request-ID"
)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	metrics   *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(extractIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger.WithComponent(applog.ComponentTrace),
		metrics:   &Metrics{},
	}
}

// Middleware returns HTTP middleware for request tracing. An incoming
// X-Request-ID is kept when it parses as a UUID; otherwise a new one is
// generated. The ID is echoed in the response header.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		m.logger.DebugContext(ctx, "HTTP request started",
			append(applog.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).ToSlice(),
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP,
				"content_length", r.ContentLength)...)

		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.StoreInt64(&m.metrics.AverageResponseTime, duration.Microseconds())

		logLevel := slog.LevelInfo
		if rw.statusCode >= 400 && rw.statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if rw.statusCode >= 500 {
			logLevel = slog.LevelError
			atomic.AddInt64(&m.metrics.FailedRequests, 1)
		}

		m.logger.LogContext(ctx, logLevel, "HTTP request completed",
			append(applog.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
				WithHTTPResponse(rw.statusCode, duration.Milliseconds()).ToSlice(),
				applog.FieldRequestID, requestID,
				applog.FieldClientIP, clientIP)...)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		FailedRequests:      atomic.LoadInt64(&m.metrics.FailedRequests),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}

// LoggerMiddleware stores a request-scoped logger in the context, tagged
// with the request ID assigned by Middleware.
func LoggerMiddleware(logger *applog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = applog.Discard()
	}
	withLogger := applog.Middleware(logger)
	withID := applog.RequestIDMiddleware(func(r *http.Request) string {
		return GetRequestID(r.Context())
	})
	return func(next http.Handler) http.Handler {
		return withLogger(withID(next))
	}
}
