package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tuition/internal/amqp"
	applog "tuition/internal/log"
	"tuition/internal/storage"
)

// Refresher rebuilds the defaulter report. *services.ReportProcessor
// satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, now time.Time) (string, error)
	RefreshIfDue(ctx context.Context, now time.Time) (bool, error)
}

// ReportWorker keeps the exported defaulter report current. It refreshes on
// ledger events from AMQP and on a cron schedule.
type ReportWorker struct {
	processor Refresher
	now       func() time.Time
}

func NewReportWorker(processor Refresher) *ReportWorker {
	return &ReportWorker{processor: processor, now: time.Now}
}

// WithClock replaces time.Now, for tests.
func (w *ReportWorker) WithClock(now func() time.Time) *ReportWorker {
	w.now = now
	return w
}

// HandleEvent processes a single ledger event from AMQP. Events that cannot
// change any student's dues are acknowledged without work.
func (w *ReportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if !affectsDues(ev) {
		slog.DebugContext(ctx, "Ignoring ledger event", "type", ev.Type, applog.FieldCollection, ev.Collection)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpReport,
		"type", ev.Type,
		applog.FieldStudentID, ev.StudentID,
		applog.FieldMonth, ev.Month,
		applog.FieldYear, ev.Year)

	if _, err := w.processor.Refresh(ctx, w.now()); err != nil {
		return fmt.Errorf("refresh report: %w", err)
	}
	return nil
}

// StartupCheck refreshes the report unless it was already produced today.
// This covers events missed while the worker was down.
func (w *ReportWorker) StartupCheck(ctx context.Context) error {
	refreshed, err := w.processor.RefreshIfDue(ctx, w.now())
	if err != nil {
		return fmt.Errorf("startup report check: %w", err)
	}
	slog.InfoContext(ctx, "Startup report check completed",
		applog.FieldOperation, applog.OpStartup,
		"refreshed", refreshed)
	return nil
}

// Schedule registers a forced refresh on c at spec (standard 5-field cron).
func (w *ReportWorker) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := w.processor.Refresh(ctx, w.now()); err != nil {
			slog.ErrorContext(ctx, "Scheduled report refresh failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule report refresh %q: %w", spec, err)
	}
	return id, nil
}

func affectsDues(ev *amqp.LedgerEvent) bool {
	switch ev.Type {
	case amqp.EventPaymentToggled:
		return true
	case amqp.EventRosterChanged:
		switch storage.Collection(ev.Collection) {
		case storage.CollectionBatches, storage.CollectionStudents:
			return true
		}
	}
	return false
}
