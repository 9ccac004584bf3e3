package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/amqp"
	"tuition/internal/core"
	"tuition/internal/ledger"
	"tuition/internal/storage"
)

func newLedgerService(t *testing.T) (*LedgerService, *recordingPublisher, storage.Store) {
	t.Helper()
	store := seededStore(t)
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub, years, time.Minute).WithClock(clock)
	return svc, pub, store
}

func TestLedgerService_TogglePayment(t *testing.T) {
	ctx := context.Background()
	svc, pub, store := newLedgerService(t)

	rec, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "May", Year: "2025"})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, rec.Status)
	assert.Equal(t, core.PaymentMonthly, rec.Type)
	assert.Equal(t, int64(1000), rec.Amount)
	assert.Equal(t, "b1", rec.BatchID)
	assert.Equal(t, "2025-06-15", rec.PaymentDate)

	again, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "May", Year: "2025"})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentDue, again.Status)
	assert.Equal(t, rec.ID, again.ID)

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, []string{amqp.EventPaymentToggled, amqp.EventPaymentToggled}, pub.types())
}

func TestLedgerService_TogglePaymentUsesEffectiveFeeAndAdvance(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t)

	rec, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s2", Month: "August", Year: "2025", PaymentDate: "2025-06-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(600), rec.Amount)
	assert.Equal(t, core.PaymentAdvance, rec.Type)
	assert.Equal(t, "2025-06-01", rec.PaymentDate)
}

func TestLedgerService_TogglePaymentErrors(t *testing.T) {
	ctx := context.Background()
	svc, pub, _ := newLedgerService(t)

	_, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "nope", Month: "May", Year: "2025"})
	assert.True(t, errors.Is(err, core.ErrUnknownStudent))

	_, err = svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "Smarch", Year: "2025"})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))

	_, err = svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "May", Year: "2030"})
	assert.True(t, isValidation(err))

	assert.Empty(t, pub.types())
}

func TestLedgerService_PublishFailureDoesNotFailToggle(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(store, pub, years, time.Minute).WithClock(clock)

	rec, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "May", Year: "2025"})
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, rec.Status)
}

func TestLedgerService_Student(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t)

	_, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "May", Year: "2025"})
	require.NoError(t, err)

	got, err := svc.Student(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Physics", got.BatchName)
	assert.Equal(t, int64(3000), got.Summary.DueTotal)
	assert.Equal(t, []string{"Mar 2025", "Apr 2025", "Jun 2025"}, got.Summary.DueMonths)
	assert.Equal(t, []string{"May 2025"}, got.Summary.PaidMonths)
	assert.Equal(t, "tel:01711000000", got.Contact.Tel)
	assert.True(t, strings.HasPrefix(got.Contact.SMS, "sms:01711000000?body="))
	assert.Contains(t, got.Contact.Message, core.DefaultInstituteName)
	assert.Contains(t, got.Contact.Message, "Total Due: 3000 Tk")

	_, err = svc.Student(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrUnknownStudent))
}

func TestLedgerService_Grid(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t)

	_, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "September", Year: "2025"})
	require.NoError(t, err)

	cells, err := svc.Grid(ctx, "s1", 2025)
	require.NoError(t, err)
	require.Len(t, cells, 12)
	assert.True(t, cells[8].Paid)
	assert.True(t, cells[8].Advance)
	assert.False(t, cells[1].Paid)

	_, err = svc.Grid(ctx, "s1", 2031)
	assert.True(t, isValidation(err))
}

func TestLedgerService_BatchFinance(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t)

	_, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s2", Month: "March", Year: "2025"})
	require.NoError(t, err)

	sum, err := svc.BatchFinance(ctx, "b1", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ActiveCount)
	assert.Equal(t, int64(600), sum.PaidTotal)
	// s1 owes 4 x 1000, s2 owes 3 x 600
	assert.Equal(t, int64(5800), sum.DueTotal)

	_, err = svc.BatchFinance(ctx, "nope", 2025)
	assert.True(t, errors.Is(err, core.ErrUnknownBatch))
}

func TestLedgerService_SystemSummaryCache(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newLedgerService(t)

	first, err := svc.SystemSummary(ctx)
	require.NoError(t, err)
	require.Len(t, first.Defaulters, 2)
	assert.Equal(t, int64(6400), first.TotalDue)
	assert.Equal(t, "s1", first.Defaulters[0].StudentID)

	// writes behind the service's back are not seen until invalidated
	require.NoError(t, store.SaveCollection(ctx, storage.CollectionStudents, []core.Student{}))
	cached, err := svc.SystemSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	svc.Invalidate()
	fresh, err := svc.SystemSummary(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh.Defaulters)
	assert.Zero(t, fresh.TotalDue)
}

func TestLedgerService_ToggleInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t)

	before, err := svc.SystemSummary(ctx)
	require.NoError(t, err)

	_, err = svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "June", Year: "2025"})
	require.NoError(t, err)

	after, err := svc.SystemSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalDue-1000, after.TotalDue)
}

// pausingStore holds the first ListPayments call after it has read the
// payments until release is closed.
type pausingStore struct {
	storage.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	payments, err := p.Store.ListPayments(ctx)
	p.once.Do(func() {
		close(p.loaded)
		<-p.release
	})
	return payments, err
}

func TestLedgerService_SummaryStartedBeforeToggleIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{
		Store:   seededStore(t),
		loaded:  make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewLedgerService(store, &recordingPublisher{}, years, time.Hour).WithClock(clock)

	type result struct {
		sum ledger.SystemSummary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := svc.SystemSummary(ctx)
		done <- result{sum, err}
	}()

	<-store.loaded
	_, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "June", Year: "2025"})
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Equal(t, int64(6400), stale.sum.TotalDue)

	sum, err := svc.SystemSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), sum.TotalDue)
}

func TestLedgerService_Dashboard(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t)

	_, err := svc.TogglePayment(ctx, ToggleInput{StudentID: "s1", Month: "June", Year: "2025"})
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), d.MonthlyRevenue)
	assert.Equal(t, int64(5400), d.TotalDue)
	assert.Equal(t, 2, d.Defaulters)
	assert.Equal(t, 2, d.ActiveStudents)
	assert.Equal(t, 1, d.ActiveBatches)
	require.Len(t, d.Schedule, 1)
	assert.Equal(t, "b1", d.Schedule[0].BatchID)
	assert.Equal(t, ledger.ScheduleUpcoming, d.Schedule[0].Status)
}

func TestLedgerService_DashboardScheduleUsesWallClock(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newLedgerService(t)

	// the service clock reads 10:00
	batches := []core.Batch{
		{ID: "b1", Name: "Physics", Fee: 1000, IsActive: true, Time: "7:00 PM"},
		{ID: "b3", Name: "Chemistry", Fee: 800, IsActive: true, Time: "9:30 AM"},
	}
	require.NoError(t, store.SaveCollection(ctx, storage.CollectionBatches, batches))

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, d.Schedule, 2)
	assert.Equal(t, "b3", d.Schedule[0].BatchID)
	assert.Equal(t, ledger.ScheduleRunning, d.Schedule[0].Status)
	assert.Equal(t, ledger.ScheduleUpcoming, d.Schedule[1].Status)
}
