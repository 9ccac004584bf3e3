package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tuition/internal/amqp"
	"tuition/internal/core"
	"tuition/internal/ledger"
	"tuition/internal/storage"
	"tuition/internal/storage/memory"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprint(n)
	}
}

// seededStore holds one batch with fee 1000 and two students enrolled in
// March 2025. s2 pays a reduced fee of 600.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New().WithIDs(sequentialIDs())

	reduced := int64(600)
	batches := []core.Batch{
		{ID: "b1", Name: "Physics", Fee: 1000, IsActive: true},
		{ID: "b2", Name: "Closed", Fee: 500, IsActive: false},
	}
	students := []core.Student{
		{ID: "s1", Name: "Rahim", Roll: "1", Mobile: "01711-000000", BatchID: "b1", Status: core.StudentActive, EnrollmentDate: core.DateParts{Month: "March", Year: "2025"}},
		{ID: "s2", Name: "Karim", Roll: "2", Mobile: "01811000000", BatchID: "b1", Status: core.StudentActive, MonthlyFee: &reduced, EnrollmentDate: core.DateParts{Month: "March", Year: "2025"}},
	}
	require.NoError(t, store.SaveCollection(ctx, storage.CollectionBatches, batches))
	require.NoError(t, store.SaveCollection(ctx, storage.CollectionStudents, students))
	return store
}

func isValidation(err error) bool {
	var ve *core.ValidationError
	return errors.As(err, &ve)
}

var years = ledger.YearRange{First: 2024, Last: 2027}
