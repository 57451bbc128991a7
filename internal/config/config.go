package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultCleanupExtensions are the transient byproducts pdflatex leaves next
// to the compiled document.
var DefaultCleanupExtensions = []string{".aux", ".log", ".fls", ".fdb_latexmk", ".synctex.gz"}

// DefaultResourceFiles are copied from the template directory into the output
// directory before compiling.
var DefaultResourceFiles = []string{"logo.png", "firma.png"}

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Document generation
	RecordPath        string
	TemplatePath      string
	OutputDir         string
	CompilerBinary    string
	CompileTimeout    time.Duration
	AutoCleanup       bool
	CleanupExtensions []string
	ResourceFiles     []string
	LegacyResourceDir string
	ReplaceSameDay    bool

	// Ledger
	LedgerBackend string
	SQLiteDBPath  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	// Worker
	HeartbeatInterval time.Duration
}

// LoadEnvFile loads a .env file for local development. A missing file is not
// an error.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "5000"),

		LogLevel:  getEnv("RESOLUCIONES_LOG_LEVEL", "info"),
		LogFormat: getEnv("RESOLUCIONES_LOG_FORMAT", "text"),

		RecordPath:        getEnv("RESOLUCIONES_RECORD_PATH", filepath.Join("static", "05_Templates_y_Recursos", "config_mes.json")),
		TemplatePath:      getEnv("RESOLUCIONES_TEMPLATE_PATH", filepath.Join("static", "05_Templates_y_Recursos", "plantilla_resolucion.tex")),
		OutputDir:         getEnv("RESOLUCIONES_OUTPUT_DIR", "01_Resoluciones"),
		CompilerBinary:    getEnv("RESOLUCIONES_COMPILER", "pdflatex"),
		CompileTimeout:    getEnvDuration("RESOLUCIONES_COMPILE_TIMEOUT", 60*time.Second),
		AutoCleanup:       getEnvBool("RESOLUCIONES_AUTO_CLEANUP", true),
		CleanupExtensions: getEnvList("RESOLUCIONES_CLEANUP_EXTENSIONS", DefaultCleanupExtensions),
		ResourceFiles:     getEnvList("RESOLUCIONES_RESOURCE_FILES", DefaultResourceFiles),
		LegacyResourceDir: getEnv("RESOLUCIONES_LEGACY_RESOURCE_DIR", "05_Templates_y_Recursos"),
		ReplaceSameDay:    getEnvBool("RESOLUCIONES_REPLACE_SAME_DAY", true),

		LedgerBackend: getEnv("LEDGER_BACKEND", "memory"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", filepath.Join("data", "ledger.db")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "resoluciones"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "generate_documents"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Gastos"),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		HeartbeatInterval: getEnvDuration("WORKER_HEARTBEAT_INTERVAL", time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if strings.TrimSpace(c.TemplatePath) == "" {
		errors = append(errors, "template path cannot be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errors = append(errors, "output directory cannot be empty")
	}
	if strings.TrimSpace(c.CompilerBinary) == "" {
		errors = append(errors, "compiler binary cannot be empty")
	}

	if c.CompileTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid compile timeout %v: must be at least 1 second", c.CompileTimeout))
	} else if c.CompileTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid compile timeout %v: must be at most 10 minutes", c.CompileTimeout))
	}

	for _, ext := range c.CleanupExtensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, fmt.Sprintf("invalid cleanup extension '%s': must start with '.'", ext))
		}
	}

	validBackends := []string{"memory", "sqlite", "sheets"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.LedgerBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}

	if c.LedgerBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.LedgerBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.HeartbeatInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid heartbeat interval %v: must be at least 1 second", c.HeartbeatInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Warnings reports settings that are legal but probably unintended.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.CompileTimeout > 0 && c.CompileTimeout < 10*time.Second {
		warnings = append(warnings, "compile timeout is very short")
	}
	if _, err := os.Stat(c.TemplatePath); err != nil {
		warnings = append(warnings, fmt.Sprintf("template file missing: %s", c.TemplatePath))
	}
	return warnings
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList reads a comma separated list; blanks are dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
