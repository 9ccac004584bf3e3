package sheets

import (
	"context"
	"time"

	"tuition/internal/ledger"
)

// Report is a point-in-time export of the defaulter list.
type Report struct {
	GeneratedAt    time.Time            `json:"generatedAt"`
	Period         ledger.Period        `json:"period"`
	MonthlyRevenue int64                `json:"monthlyRevenue"`
	Summary        ledger.SystemSummary `json:"summary"`
}

// Ports for outbound adapters.
type (
	ReportWriter interface {
		// WriteReport replaces the previously exported report.
		WriteReport(ctx context.Context, r Report) (ref string, err error)
	}

	ReportReader interface {
		// LastReport returns the most recent export, false when none exists.
		LastReport(ctx context.Context) (Report, bool, error)
	}
)
