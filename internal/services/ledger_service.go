package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"tuition/internal/amqp"
	"tuition/internal/cache"
	"tuition/internal/contact"
	"tuition/internal/core"
	"tuition/internal/ledger"
	applog "tuition/internal/log"
	"tuition/internal/roster"
	"tuition/internal/storage"
)

// LedgerService answers payment questions over the stored collections and
// records toggles.
type LedgerService struct {
	store     storage.Store
	publisher Publisher
	years     ledger.YearRange
	summaries *cache.LRUCache[ledger.SystemSummary]

	// generation counts invalidations so a summary computed across one is
	// not cached.
	generation atomic.Uint64
	now        func() time.Time
}

// ToggleInput identifies the month cell a user clicked.
type ToggleInput struct {
	StudentID   string           `json:"studentId" validate:"required"`
	Month       string           `json:"month" validate:"required,monthname"`
	Year        string           `json:"year" validate:"required,yearstr"`
	PaymentDate string           `json:"paymentDate" validate:"omitempty,isodate"`
	Type        core.PaymentType `json:"type" validate:"omitempty,oneof=Monthly Advance PastDue"`
}

// StudentLedger is a student's full payment picture.
type StudentLedger struct {
	Student   core.Student          `json:"student"`
	BatchName string                `json:"batchName"`
	Summary   ledger.StudentSummary `json:"summary"`
	Contact   contact.Actions       `json:"contact"`
}

func NewLedgerService(store storage.Store, publisher Publisher, years ledger.YearRange, cacheTTL time.Duration) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		years:     years,
		summaries: cache.NewLRUCache[ledger.SystemSummary](12, cacheTTL),
		now:       time.Now,
	}
}

// WithClock replaces time.Now, for tests.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	s.summaries.WithClock(now)
	return s
}

// Summaries exposes the summary cache so it can be registered for cleanup.
func (s *LedgerService) Summaries() *cache.LRUCache[ledger.SystemSummary] {
	return s.summaries
}

// Invalidate drops cached summaries. Roster writes call it.
func (s *LedgerService) Invalidate() {
	s.generation.Add(1)
	s.summaries.Purge()
}

func (s *LedgerService) Years() ledger.YearRange {
	return s.years
}

// Now is the service clock.
func (s *LedgerService) Now() time.Time {
	return s.now()
}

func (s *LedgerService) period() ledger.Period {
	return ledger.PeriodOf(s.now())
}

// TogglePayment flips the payment of one student month. The fee charged is
// the student's effective fee at the time of the click.
func (s *LedgerService) TogglePayment(ctx context.Context, in ToggleInput) (core.PaymentRecord, error) {
	if err := core.Validate(in); err != nil {
		return core.PaymentRecord{}, err
	}
	p, err := ledger.ParsePeriod(in.Month, in.Year)
	if err != nil {
		return core.PaymentRecord{}, err
	}
	if !s.years.Contains(p.Year) {
		return core.PaymentRecord{}, core.NewValidationError(
			fmt.Errorf("year %d outside ledger range %d-%d", p.Year, s.years.First, s.years.Last),
			core.FieldError{Field: "year", Error: "out of range"})
	}

	st, b, err := s.studentAndBatch(ctx, in.StudentID)
	if err != nil {
		return core.PaymentRecord{}, err
	}

	date := strings.TrimSpace(in.PaymentDate)
	if date == "" {
		date = today(s.now)
	}
	req := ledger.ToggleRequest{
		StudentID:   st.ID,
		BatchID:     b.ID,
		Period:      p,
		Fee:         ledger.EffectiveFee(st, b),
		PaymentDate: date,
		Type:        in.Type,
		Now:         s.period(),
	}
	rec, err := s.store.TogglePayment(ctx, req)
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("toggle payment: %w", err)
	}
	s.Invalidate()

	slog.InfoContext(ctx, "Payment toggled", applog.NewFields().
		WithComponent(applog.ComponentLedger).
		WithOperation(applog.OpToggle).
		WithPayment(rec.ID, rec.StudentID, rec.BatchID, rec.Month, rec.Year, string(rec.Status), rec.Amount).
		ToSlice()...)

	publish(ctx, s.publisher, amqp.NewPaymentToggled(rec.ID, rec.StudentID, rec.BatchID, rec.Month, rec.Year, string(rec.Status)))
	return rec, nil
}

// Student returns the lifetime summary of one student, archived or not,
// with the contact actions built from it.
func (s *LedgerService) Student(ctx context.Context, studentID string) (StudentLedger, error) {
	st, b, err := s.studentAndBatch(ctx, studentID)
	if err != nil {
		return StudentLedger{}, err
	}
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return StudentLedger{}, err
	}
	settings, err := s.settings(ctx)
	if err != nil {
		return StudentLedger{}, err
	}

	sum := ledger.StudentDueSummary(st, b, ledger.NewPaymentIndex(payments), s.period(), s.years)
	return StudentLedger{
		Student:   st,
		BatchName: b.Name,
		Summary:   sum,
		Contact:   contact.ForSummary(settings, st, b.Name, sum),
	}, nil
}

// Grid returns the twelve month cells of year for a student.
func (s *LedgerService) Grid(ctx context.Context, studentID string, year int) ([]ledger.MonthCell, error) {
	if !s.years.Contains(year) {
		return nil, core.NewValidationError(
			fmt.Errorf("year %d outside ledger range %d-%d", year, s.years.First, s.years.Last),
			core.FieldError{Field: "year", Error: "out of range"})
	}
	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return nil, err
	}
	st, ok := roster.FindStudent(students, studentID)
	if !ok {
		return nil, fmt.Errorf("student %s: %w", studentID, core.ErrUnknownStudent)
	}
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.HonorariumGrid(st, ledger.NewPaymentIndex(payments), year, s.period()), nil
}

// BatchFinance returns the batch's monthly collection report for year.
func (s *LedgerService) BatchFinance(ctx context.Context, batchID string, year int) (ledger.BatchSummary, error) {
	if !s.years.Contains(year) {
		return ledger.BatchSummary{}, core.NewValidationError(
			fmt.Errorf("year %d outside ledger range %d-%d", year, s.years.First, s.years.Last),
			core.FieldError{Field: "year", Error: "out of range"})
	}
	snap, err := storage.LoadSnapshot(ctx, s.store)
	if err != nil {
		return ledger.BatchSummary{}, err
	}
	b, ok := roster.FindBatch(snap.Batches, batchID)
	if !ok {
		return ledger.BatchSummary{}, fmt.Errorf("batch %s: %w", batchID, core.ErrUnknownBatch)
	}
	return ledger.BatchFinanceSummary(b, snap.Students, snap.Payments, year, s.period(), s.years), nil
}

// SystemSummary returns total due and the defaulter list. Results are cached
// per month until the next write.
func (s *LedgerService) SystemSummary(ctx context.Context) (ledger.SystemSummary, error) {
	now := s.period()
	key := now.String()
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}
	gen := s.generation.Load()
	snap, err := storage.LoadSnapshot(ctx, s.store)
	if err != nil {
		return ledger.SystemSummary{}, err
	}
	sum := ledger.SystemWideDueSummary(snap.Students, snap.Batches, snap.Payments, now, s.years)
	if s.generation.Load() == gen {
		s.summaries.Set(key, sum)
	}
	return sum, nil
}

// Dashboard returns the home screen figures and today's class schedule.
func (s *LedgerService) Dashboard(ctx context.Context) (ledger.Dashboard, error) {
	snap, err := storage.LoadSnapshot(ctx, s.store)
	if err != nil {
		return ledger.Dashboard{}, err
	}
	d := ledger.BuildDashboard(snap.Students, snap.Batches, snap.Payments, s.period(), s.years)
	d.Schedule = ledger.ActiveSchedule(snap.Batches, s.now())
	return d, nil
}

func (s *LedgerService) studentAndBatch(ctx context.Context, studentID string) (core.Student, core.Batch, error) {
	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return core.Student{}, core.Batch{}, err
	}
	st, ok := roster.FindStudent(students, studentID)
	if !ok {
		return core.Student{}, core.Batch{}, fmt.Errorf("student %s: %w", studentID, core.ErrUnknownStudent)
	}
	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Student{}, core.Batch{}, err
	}
	b, ok := roster.FindBatch(batches, st.BatchID)
	if !ok {
		return core.Student{}, core.Batch{}, fmt.Errorf("batch %s of student %s: %w", st.BatchID, st.ID, core.ErrUnknownBatch)
	}
	return st, b, nil
}

func (s *LedgerService) settings(ctx context.Context) (core.Settings, error) {
	return loadSettings(ctx, s.store)
}

func loadSettings(ctx context.Context, store storage.Store) (core.Settings, error) {
	settings := core.DefaultSettings()
	if _, err := store.LoadCollection(ctx, storage.CollectionSettings, &settings); err != nil {
		return core.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings.WithDefaults(), nil
}
