package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/core"
	"tuition/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "tuition.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_Collections(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var batches []core.Batch
	found, err := repo.LoadCollection(ctx, CollectionBatches, &batches)
	require.NoError(t, err)
	assert.False(t, found)

	want := []core.Batch{{ID: "b1", Name: "Physics", Fee: 1000, IsActive: true, Days: []string{"Sat"}}}
	require.NoError(t, repo.SaveCollection(ctx, CollectionBatches, want))

	found, err = repo.LoadCollection(ctx, CollectionBatches, &batches)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, batches)

	want[0].Name = "Chemistry"
	require.NoError(t, repo.SaveCollection(ctx, CollectionBatches, want))
	batches = nil
	_, err = repo.LoadCollection(ctx, CollectionBatches, &batches)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", batches[0].Name)
}

func TestSQLiteRepository_TogglePayment(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	req := ledger.ToggleRequest{
		StudentID: "s1",
		BatchID:   "b1",
		Period:    ledger.Period{Year: 2025, Month: time.July},
		Fee:       1000,
		Now:       ledger.Period{Year: 2025, Month: time.June},
	}

	first, err := repo.TogglePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPaid, first.Status)
	assert.Equal(t, core.PaymentAdvance, first.Type)

	second, err := repo.TogglePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentDue, second.Status)
	assert.Equal(t, first.ID, second.ID)

	other := req
	other.Period = ledger.Period{Year: 2025, Month: time.March}
	_, err = repo.TogglePayment(ctx, other)
	require.NoError(t, err)

	payments, err := repo.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, first.ID, payments[0].ID)
	assert.Equal(t, core.PaymentDue, payments[0].Status)
	assert.Equal(t, "March", payments[1].Month)
	assert.Equal(t, core.PaymentMonthly, payments[1].Type)
}

func TestSQLiteRepository_UniquePeriod(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.db.ExecContext(ctx, `INSERT INTO payments (id, student_id, batch_id, amount, month, year, status) VALUES ('a', 's1', 'b1', 10, 'May', '2025', 'Paid')`)
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx, `INSERT INTO payments (id, student_id, batch_id, amount, month, year, status) VALUES ('b', 's1', 'b2', 10, 'May', '2025', 'Paid')`)
	assert.Error(t, err)
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	snap, err := LoadSnapshot(ctx, repo)
	require.NoError(t, err)
	assert.Empty(t, snap.Batches)
	assert.NotNil(t, snap.Students)
	assert.NotNil(t, snap.Payments)
	assert.Equal(t, core.DefaultSettings(), snap.Settings)

	students := []core.Student{{ID: "s1", Name: "A", BatchID: "b1", Status: core.StudentActive}}
	require.NoError(t, repo.SaveCollection(ctx, CollectionStudents, students))
	require.NoError(t, repo.SaveCollection(ctx, CollectionSettings, core.Settings{InstituteName: "Acme", StandardFee: 800}))
	require.NoError(t, repo.SaveCollection(ctx, CollectionNotes, nil))
	_, err = repo.TogglePayment(ctx, ledger.ToggleRequest{StudentID: "s1", BatchID: "b1", Period: ledger.Period{Year: 2025, Month: time.May}, Now: ledger.Period{Year: 2025, Month: time.June}})
	require.NoError(t, err)

	snap, err = LoadSnapshot(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, students, snap.Students)
	assert.Len(t, snap.Payments, 1)
	assert.NotNil(t, snap.Notes)
	assert.Equal(t, "Acme", snap.Settings.InstituteName)
	assert.Equal(t, int64(800), snap.Settings.StandardFee)
	assert.Equal(t, core.DefaultSMSTemplate, snap.Settings.SMSTemplate)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuition.db")

	first, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	second, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
