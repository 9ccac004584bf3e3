package backend

import (
	"context"

	"tuition/internal/amqp"
	"tuition/internal/services"
	"tuition/internal/sheets"
	"tuition/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything the processes need from the environment.
type BackendResult struct {
	Store   storage.Store
	Reports sheets.ReportWriter // nil when reports are disabled
	AMQP    *amqp.Client        // nil when AMQP is not configured or unreachable
	Cleanup CleanupFunc
}

// Publisher returns the AMQP client as a services.Publisher, or nil.
func (r *BackendResult) Publisher() services.Publisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// AMQP, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Defaulter report sink
	Report                   ReportType
	GoogleSpreadsheetID      string
	GoogleReportSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ReportType selects where the defaulter report is written.
type ReportType string

const (
	NoReport     ReportType = "none"
	MemoryReport ReportType = "memory"
	SheetsReport ReportType = "sheets"
)

func (rt ReportType) IsValid() bool {
	switch rt {
	case NoReport, MemoryReport, SheetsReport:
		return true
	default:
		return false
	}
}
