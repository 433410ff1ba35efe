package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldMonth      = "month"

	FieldKind          = "kind"
	FieldTransactionID = "transaction_id"
	FieldDocumentID    = "document_id"
	FieldCardType      = "card_type"
	FieldHolder        = "holder"
	FieldSyncLabel     = "sync_label"
	FieldAdded         = "added"
	FieldDeleted       = "deleted"
	FieldInvalid       = "invalid"
	FieldFile          = "file"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentStatements = "statements"
	ComponentSync       = "sync"
	ComponentRates      = "rates"
	ComponentPDFParser  = "pdfparser"
	ComponentResumes    = "resumes"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpList     = "list"
	OpSync     = "sync"
	OpIngest   = "ingest"
	OpParse    = "parse"
	OpFetch    = "fetch"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithPeriod(year, month int) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	return f
}

// WithTransaction adds the ledger kind and row identifier.
func (f LogFields) WithTransaction(kind, id string) LogFields {
	f[FieldKind] = kind
	f[FieldTransactionID] = id
	return f
}

// WithStatement adds the statement document hash and card type.
func (f LogFields) WithStatement(documentID, cardType string) LogFields {
	f[FieldDocumentID] = documentID
	f[FieldCardType] = cardType
	return f
}

// WithSync adds the outcome counters of one sync job.
func (f LogFields) WithSync(label string, added, deleted, invalid int) LogFields {
	f[FieldSyncLabel] = label
	f[FieldAdded] = added
	f[FieldDeleted] = deleted
	f[FieldInvalid] = invalid
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
