package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/amqp"
	"tuition/internal/storage"
)

type fakeRefresher struct {
	refreshes int
	ifDue     int
	due       bool
	err       error
	lastNow   time.Time
}

func (f *fakeRefresher) Refresh(_ context.Context, now time.Time) (string, error) {
	f.refreshes++
	f.lastNow = now
	return "mem:1", f.err
}

func (f *fakeRefresher) RefreshIfDue(_ context.Context, now time.Time) (bool, error) {
	f.ifDue++
	f.lastNow = now
	return f.due, f.err
}

var fixedNow = time.Date(2025, time.June, 15, 7, 0, 0, 0, time.UTC)

func TestReportWorker_HandleEvent(t *testing.T) {
	tests := []struct {
		name        string
		event       *amqp.LedgerEvent
		wantRefresh bool
	}{
		{name: "payment toggled", event: amqp.NewPaymentToggled("p1", "s1", "b1", "May", "2025", "Paid"), wantRefresh: true},
		{name: "students changed", event: amqp.NewRosterChanged(string(storage.CollectionStudents)), wantRefresh: true},
		{name: "batches changed", event: amqp.NewRosterChanged(string(storage.CollectionBatches)), wantRefresh: true},
		{name: "notes changed", event: amqp.NewRosterChanged(string(storage.CollectionNotes))},
		{name: "unknown type", event: &amqp.LedgerEvent{Type: "other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRefresher{}
			w := NewReportWorker(f).WithClock(func() time.Time { return fixedNow })

			require.NoError(t, w.HandleEvent(context.Background(), tt.event))
			if tt.wantRefresh {
				assert.Equal(t, 1, f.refreshes)
				assert.Equal(t, fixedNow, f.lastNow)
			} else {
				assert.Zero(t, f.refreshes)
			}
		})
	}
}

func TestReportWorker_HandleEventError(t *testing.T) {
	f := &fakeRefresher{err: errors.New("sheets down")}
	w := NewReportWorker(f)

	err := w.HandleEvent(context.Background(), amqp.NewPaymentToggled("p1", "s1", "b1", "May", "2025", "Paid"))
	assert.ErrorContains(t, err, "sheets down")
}

func TestReportWorker_StartupCheck(t *testing.T) {
	f := &fakeRefresher{due: true}
	w := NewReportWorker(f)
	require.NoError(t, w.StartupCheck(context.Background()))
	assert.Equal(t, 1, f.ifDue)

	f.err = errors.New("boom")
	assert.Error(t, w.StartupCheck(context.Background()))
}

func TestReportWorker_Schedule(t *testing.T) {
	f := &fakeRefresher{}
	w := NewReportWorker(f).WithClock(func() time.Time { return fixedNow })
	c := cron.New()

	_, err := w.Schedule(c, "every morning")
	assert.Error(t, err)

	id, err := w.Schedule(c, "0 7 * * *")
	require.NoError(t, err)

	c.Entry(id).Job.Run()
	assert.Equal(t, 1, f.refreshes)
	assert.Equal(t, fixedNow, f.lastNow)
}
