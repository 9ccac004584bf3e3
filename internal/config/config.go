package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DataDir      string // seed directory for the memory backend

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Defaulter report
	ReportBackend            string
	ReportSchedule           string
	GoogleSpreadsheetID      string
	GoogleReportSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Ledger
	LedgerFirstYear int
	LedgerLastYear  int
	SummaryCacheTTL time.Duration
}

var (
	validBackends       = []string{"memory", "sqlite"}
	validReportBackends = []string{"none", "memory", "sheets"}
)

// Load reads the configuration from the environment. Call cli.LoadEnvFile
// first to pick up a .env file.
func Load() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("PORT", "8081")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_BACKEND", "sqlite")
	v.SetDefault("SQLITE_DB_PATH", "./data/tuition.db")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "tuition")
	v.SetDefault("AMQP_QUEUE", "ledger_events")
	v.SetDefault("REPORT_BACKEND", "memory")
	v.SetDefault("REPORT_SCHEDULE", "0 7 * * *")
	v.SetDefault("GOOGLE_SPREADSHEET_ID", "")
	v.SetDefault("GOOGLE_REPORT_SHEET", "Defaulters")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	v.SetDefault("LEDGER_FIRST_YEAR", 2024)
	v.SetDefault("LEDGER_LAST_YEAR", 2027)
	v.SetDefault("SUMMARY_CACHE_TTL", 30*time.Second)
	v.AutomaticEnv()

	return &Config{
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DataBackend:  strings.ToLower(v.GetString("DATA_BACKEND")),
		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),
		DataDir:      v.GetString("DATA_DIR"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		ReportBackend:            strings.ToLower(v.GetString("REPORT_BACKEND")),
		ReportSchedule:           v.GetString("REPORT_SCHEDULE"),
		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleReportSheet:        v.GetString("GOOGLE_REPORT_SHEET"),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),

		LedgerFirstYear: v.GetInt("LEDGER_FIRST_YEAR"),
		LedgerLastYear:  v.GetInt("LEDGER_LAST_YEAR"),
		SummaryCacheTTL: v.GetDuration("SUMMARY_CACHE_TTL"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
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

	if !slices.Contains(validReportBackends, c.ReportBackend) {
		errors = append(errors, fmt.Sprintf("invalid report backend '%s': must be one of %v", c.ReportBackend, validReportBackends))
	}
	if c.ReportBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets report backend")
		}
		if c.GoogleReportSheet == "" {
			errors = append(errors, "Google report sheet name is required when using sheets report backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets report backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.ReportSchedule != "" {
		if _, err := cron.ParseStandard(c.ReportSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid report schedule '%s': %v", c.ReportSchedule, err))
		}
	}

	if c.LedgerFirstYear < 1000 || c.LedgerLastYear > 9999 {
		errors = append(errors, fmt.Sprintf("invalid ledger years %d-%d: must be 4-digit years", c.LedgerFirstYear, c.LedgerLastYear))
	} else if c.LedgerLastYear < c.LedgerFirstYear {
		errors = append(errors, fmt.Sprintf("invalid ledger years %d-%d: last year before first year", c.LedgerFirstYear, c.LedgerLastYear))
	}

	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	} else if c.SummaryCacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be at most 1 hour", c.SummaryCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
