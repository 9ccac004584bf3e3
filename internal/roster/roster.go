// Package roster holds the state transitions behind the batch, student,
// fine, note and attendance screens. Functions take a collection and return
// a new one; callers persist the result.
package roster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"tuition/internal/core"
)

// ID prefixes of generated records.
const (
	PrefixBatch      = "batch_"
	PrefixStudent    = "std_"
	PrefixFine       = "fine_"
	PrefixNote       = "note_"
	PrefixAttendance = "att_"
)

// IDFunc generates the random part of a record id.
type IDFunc func() string

func newID(prefix string, gen IDFunc) string {
	if gen == nil {
		gen = uuid.NewString
	}
	return prefix + gen()
}

// FindBatch returns the batch with id.
func FindBatch(batches []core.Batch, id string) (core.Batch, bool) {
	for _, b := range batches {
		if b.ID == id {
			return b, true
		}
	}
	return core.Batch{}, false
}

// AddBatch validates b, assigns an id and appends it.
func AddBatch(batches []core.Batch, b core.Batch, gen IDFunc) ([]core.Batch, core.Batch, error) {
	b.Name = strings.TrimSpace(b.Name)
	if err := b.Validate(); err != nil {
		return batches, core.Batch{}, fmt.Errorf("add batch: %w", err)
	}
	if b.ID == "" {
		b.ID = newID(PrefixBatch, gen)
	}
	out := append(clone(batches), b)
	return out, b, nil
}

// ReplaceBatch swaps the stored batch with the same id.
func ReplaceBatch(batches []core.Batch, b core.Batch) ([]core.Batch, error) {
	if err := b.Validate(); err != nil {
		return batches, fmt.Errorf("replace batch: %w", err)
	}
	out := clone(batches)
	for i := range out {
		if out[i].ID == b.ID {
			out[i] = b
			return out, nil
		}
	}
	return batches, fmt.Errorf("replace batch %s: %w", b.ID, core.ErrUnknownBatch)
}

// ToggleBatchActive flips isActive of one batch.
func ToggleBatchActive(batches []core.Batch, id string) ([]core.Batch, core.Batch, error) {
	out := clone(batches)
	for i := range out {
		if out[i].ID == id {
			out[i].IsActive = !out[i].IsActive
			return out, out[i], nil
		}
	}
	return batches, core.Batch{}, fmt.Errorf("toggle batch %s: %w", id, core.ErrUnknownBatch)
}

// PendingNotes counts the batch's notes still marked Pending.
func PendingNotes(notes []core.BatchNote, batchID string) int {
	n := 0
	for _, note := range notes {
		if note.BatchID == batchID && note.Status == core.NotePending {
			n++
		}
	}
	return n
}

// FindStudent returns the student with id.
func FindStudent(students []core.Student, id string) (core.Student, bool) {
	for _, s := range students {
		if s.ID == id {
			return s, true
		}
	}
	return core.Student{}, false
}

// AddStudent enrolls s in an existing batch. New students are Active.
func AddStudent(students []core.Student, batches []core.Batch, s core.Student, gen IDFunc) ([]core.Student, core.Student, error) {
	if _, ok := FindBatch(batches, s.BatchID); !ok {
		return students, core.Student{}, fmt.Errorf("add student: batch %s: %w", s.BatchID, core.ErrUnknownBatch)
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Status == "" {
		s.Status = core.StudentActive
	}
	if err := s.Validate(); err != nil {
		return students, core.Student{}, fmt.Errorf("add student: %w", err)
	}
	if s.ID == "" {
		s.ID = newID(PrefixStudent, gen)
	}
	return append(clone(students), s), s, nil
}

// ReplaceStudent swaps the stored student with the same id.
func ReplaceStudent(students []core.Student, batches []core.Batch, s core.Student) ([]core.Student, error) {
	if _, ok := FindBatch(batches, s.BatchID); !ok {
		return students, fmt.Errorf("replace student: batch %s: %w", s.BatchID, core.ErrUnknownBatch)
	}
	if err := s.Validate(); err != nil {
		return students, fmt.Errorf("replace student: %w", err)
	}
	out := clone(students)
	for i := range out {
		if out[i].ID == s.ID {
			out[i] = s
			return out, nil
		}
	}
	return students, fmt.Errorf("replace student %s: %w", s.ID, core.ErrUnknownStudent)
}

// SetStudentStatus archives or restores a student.
func SetStudentStatus(students []core.Student, id string, status core.StudentStatus) ([]core.Student, core.Student, error) {
	if status != core.StudentActive && status != core.StudentArchive {
		return students, core.Student{}, core.NewValidationError(fmt.Errorf("invalid status %q", status), core.FieldError{Field: "status", Error: "must be Active or Archive"})
	}
	out := clone(students)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
			return out, out[i], nil
		}
	}
	return students, core.Student{}, fmt.Errorf("set status %s: %w", id, core.ErrUnknownStudent)
}

// BatchStudents lists the students of a batch, Active first, then by name.
func BatchStudents(students []core.Student, batchID string) []core.Student {
	out := make([]core.Student, 0)
	for _, s := range students {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].IsActive(), out[j].IsActive()
		if ai != aj {
			return ai
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func clone[T any](in []T) []T {
	out := make([]T, len(in), len(in)+1)
	copy(out, in)
	return out
}
