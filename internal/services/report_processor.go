package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tuition/internal/ledger"
	applog "tuition/internal/log"
	"tuition/internal/sheets"
	"tuition/internal/storage"
)

// ReportProcessor exports the defaulter list to a report sink.
type ReportProcessor struct {
	store  storage.Store
	writer sheets.ReportWriter
	reader sheets.ReportReader // optional, enables RefreshIfDue skipping
	years  ledger.YearRange
}

// NewReportProcessor creates a processor. When writer also implements
// sheets.ReportReader, RefreshIfDue skips reports already written today.
func NewReportProcessor(store storage.Store, writer sheets.ReportWriter, years ledger.YearRange) *ReportProcessor {
	p := &ReportProcessor{store: store, writer: writer, years: years}
	if r, ok := writer.(sheets.ReportReader); ok {
		p.reader = r
	}
	return p
}

// Refresh recomputes the defaulter list as of now and writes it.
func (p *ReportProcessor) Refresh(ctx context.Context, now time.Time) (string, error) {
	if p.store == nil || p.writer == nil {
		return "", errors.New("report processor not properly initialized")
	}

	snap, err := storage.LoadSnapshot(ctx, p.store)
	if err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}

	period := ledger.PeriodOf(now)
	report := sheets.Report{
		GeneratedAt:    now,
		Period:         period,
		MonthlyRevenue: ledger.MonthlyRevenue(snap.Payments, snap.Batches, period),
		Summary:        ledger.SystemWideDueSummary(snap.Students, snap.Batches, snap.Payments, period, p.years),
	}

	ref, err := p.writer.WriteReport(ctx, report)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Defaulter report refreshed",
		applog.FieldComponent, applog.ComponentReport,
		applog.FieldOperation, applog.OpReport,
		"period", period.String(),
		"defaulters", len(report.Summary.Defaulters),
		"total_due", report.Summary.TotalDue,
		"ref", ref)
	return ref, nil
}

// RefreshIfDue refreshes unless a report was already generated on now's
// calendar day. It reports whether a refresh happened.
func (p *ReportProcessor) RefreshIfDue(ctx context.Context, now time.Time) (bool, error) {
	if p.reader != nil {
		last, found, err := p.reader.LastReport(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read last report, refreshing anyway", "error", err)
		} else if found && !isDueDaily(last.GeneratedAt, now) {
			return false, nil
		}
	}
	if _, err := p.Refresh(ctx, now); err != nil {
		return false, err
	}
	return true, nil
}

// isDueDaily is true when lastRun is zero or on an earlier day than now.
func isDueDaily(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.In(now.Location()).Format(isoDate) != now.Format(isoDate)
}
