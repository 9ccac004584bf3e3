package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tuition/internal/core"
	"tuition/internal/ledger"
)

// Collection names a persisted JSON collection.
type Collection string

const (
	CollectionBatches    Collection = "batches"
	CollectionStudents   Collection = "students"
	CollectionAttendance Collection = "attendance"
	CollectionFines      Collection = "fines"
	CollectionNotes      Collection = "notes"
	CollectionSettings   Collection = "settings"
)

// Collections lists every JSON collection.
func Collections() []Collection {
	return []Collection{
		CollectionBatches,
		CollectionStudents,
		CollectionAttendance,
		CollectionFines,
		CollectionNotes,
		CollectionSettings,
	}
}

// Store persists the named collections and the payment ledger.
//
// LoadCollection decodes the last saved value into dst and reports whether
// anything was saved. Payments are kept apart from the other collections so
// that TogglePayment can upsert a single record atomically.
type Store interface {
	LoadCollection(ctx context.Context, name Collection, dst any) (bool, error)
	SaveCollection(ctx context.Context, name Collection, v any) error
	ListPayments(ctx context.Context) ([]core.PaymentRecord, error)
	TogglePayment(ctx context.Context, req ledger.ToggleRequest) (core.PaymentRecord, error)
	Close() error
}

// Snapshot is every collection loaded at one point in time.
type Snapshot struct {
	Batches    []core.Batch
	Students   []core.Student
	Payments   []core.PaymentRecord
	Attendance []core.AttendanceRecord
	Fines      []core.FineRecord
	Notes      []core.BatchNote
	Settings   core.Settings
}

// LoadSnapshot loads all collections concurrently. Missing collections come
// back empty and missing settings come back as core.DefaultSettings.
func LoadSnapshot(ctx context.Context, s Store) (Snapshot, error) {
	snap := Snapshot{
		Batches:    []core.Batch{},
		Students:   []core.Student{},
		Attendance: []core.AttendanceRecord{},
		Fines:      []core.FineRecord{},
		Notes:      []core.BatchNote{},
		Settings:   core.DefaultSettings(),
	}

	g, ctx := errgroup.WithContext(ctx)
	load := func(name Collection, dst any) {
		g.Go(func() error {
			if _, err := s.LoadCollection(ctx, name, dst); err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			return nil
		})
	}
	load(CollectionBatches, &snap.Batches)
	load(CollectionStudents, &snap.Students)
	load(CollectionAttendance, &snap.Attendance)
	load(CollectionFines, &snap.Fines)
	load(CollectionNotes, &snap.Notes)
	load(CollectionSettings, &snap.Settings)
	g.Go(func() error {
		payments, err := s.ListPayments(ctx)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		snap.Payments = payments
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.Settings = snap.Settings.WithDefaults()
	if snap.Payments == nil {
		snap.Payments = []core.PaymentRecord{}
	}
	// a saved null decodes to nil
	if snap.Batches == nil {
		snap.Batches = []core.Batch{}
	}
	if snap.Students == nil {
		snap.Students = []core.Student{}
	}
	if snap.Attendance == nil {
		snap.Attendance = []core.AttendanceRecord{}
	}
	if snap.Fines == nil {
		snap.Fines = []core.FineRecord{}
	}
	if snap.Notes == nil {
		snap.Notes = []core.BatchNote{}
	}
	return snap, nil
}
