package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Feed backend selection
	DataBackend    string
	MemoryFeedFile string

	// Google Sheets
	GoogleSpreadsheetID       string
	GoogleIncomeSpreadsheetID string
	GoogleServiceAccountJSON  string
	GoogleServiceAccountFile  string
	SheetHistoricExpenses     string
	SheetCurrentMonthExpenses string
	SheetHistoricIncomes      string
	SheetCurrentMonthIncomes  string

	// Reference rate
	RateURL      string
	RatePath     string
	RateTimeout  time.Duration
	RateCacheTTL time.Duration

	// Statement import
	PDFParserURL            string
	PDFParserTimeout        time.Duration
	ResumesDir              string
	ResumeImportConcurrency int

	// Worker
	SyncInterval time.Duration
}

func Load() *Config {
	spreadsheetID := getEnv("GOOGLE_SPREADSHEET_ID", "")
	return &Config{
		Port:               getEnv("PORT", "8000"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/registros.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanzas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_requests"),

		DataBackend:    getEnv("DATA_BACKEND", BackendMemory),
		MemoryFeedFile: getEnv("MEMORY_FEED_FILE", ""),

		GoogleSpreadsheetID:       spreadsheetID,
		GoogleIncomeSpreadsheetID: getEnv("GOOGLE_INCOME_SPREADSHEET_ID", spreadsheetID),
		GoogleServiceAccountJSON:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", getEnv("GOOGLE_SHEETS_CREDS_JSON", "")),
		GoogleServiceAccountFile:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		SheetHistoricExpenses:     getEnv("SHEET_HISTORIC_EXPENSES", "1"),
		SheetCurrentMonthExpenses: getEnv("SHEET_CURRENT_MONTH_EXPENSES", "5"),
		SheetHistoricIncomes:      getEnv("SHEET_HISTORIC_INCOMES", "Ingresos"),
		SheetCurrentMonthIncomes:  getEnv("SHEET_CURRENT_MONTH_INCOMES", "Ingresos mes actual"),

		RateURL:      getEnv("RATE_URL", "https://api.bluelytics.com.ar/v2/latest"),
		RatePath:     getEnv("RATE_JSONPATH", "$.blue.value_buy"),
		RateTimeout:  getEnvDuration("RATE_TIMEOUT", 10*time.Second),
		RateCacheTTL: getEnvDuration("RATE_CACHE_TTL", 0),

		PDFParserURL:            getEnv("PDF_PARSER_URL", ""),
		PDFParserTimeout:        getEnvDuration("PDF_PARSER_TIMEOUT", 2*time.Minute),
		ResumesDir:              getEnv("RESUMES_DIR", "./resumes"),
		ResumeImportConcurrency: getEnvInt("RESUME_IMPORT_CONCURRENCY", 2),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", time.Hour),
	}
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			problems = append(problems, "GOOGLE_SPREADSHEET_ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			problems = append(problems, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				problems = append(problems, fmt.Sprintf("service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendSheets, BackendMemory))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for name, raw := range map[string]string{"RATE_URL": c.RateURL, "PDF_PARSER_URL": c.PDFParserURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			problems = append(problems, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", name, raw))
		}
	}

	if c.ResumeImportConcurrency < 1 || c.ResumeImportConcurrency > 16 {
		problems = append(problems, fmt.Sprintf("invalid resume import concurrency %d: must be between 1 and 16", c.ResumeImportConcurrency))
	}
	if c.RateCacheTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid rate cache TTL %v: must not be negative", c.RateCacheTTL))
	}
	if c.SyncInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		problems = append(problems, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
