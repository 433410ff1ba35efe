package http

import (
	"encoding/json"
	"net/http"
)

// JSONResponseBuilder provides a fluent API for writing JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response. An unencodable payload turns into a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	body, err := json.Marshal(b.payload)
	status := b.statusCode
	if err != nil {
		body = []byte(`{"error":"failed to encode response"}`)
		status = http.StatusInternalServerError
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
		Header("Retry-After", "60")
}
