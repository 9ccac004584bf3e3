package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"tuition/internal/amqp"
	"tuition/internal/core"
	"tuition/internal/ledger"
	applog "tuition/internal/log"
	"tuition/internal/roster"
	"tuition/internal/storage"
)

// RosterService applies roster transitions and persists the touched
// collections. Writes are serialized so concurrent requests do not lose
// each other's changes.
type RosterService struct {
	store     storage.Store
	publisher Publisher
	newID     roster.IDFunc
	now       func() time.Time
	onChange  []func()

	mu sync.Mutex
}

// BatchView is a batch with the counts shown on its card.
type BatchView struct {
	core.Batch
	ActiveStudents int `json:"activeStudents"`
	PendingNotes   int `json:"pendingNotes"`
}

// AttendanceInput marks one student for one day.
type AttendanceInput struct {
	StudentID  string                `json:"studentId" validate:"required"`
	Date       string                `json:"date" validate:"required,isodate"`
	Status     core.AttendanceStatus `json:"status" validate:"oneof=P A"`
	FineAmount int64                 `json:"fineAmount" validate:"gte=0"`
}

func NewRosterService(store storage.Store, publisher Publisher) *RosterService {
	return &RosterService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// WithIDs overrides the random part of generated ids, for tests.
func (s *RosterService) WithIDs(gen roster.IDFunc) *RosterService {
	s.newID = gen
	return s
}

// WithClock replaces time.Now, for tests.
func (s *RosterService) WithClock(now func() time.Time) *RosterService {
	s.now = now
	return s
}

// OnChange registers fn to run after every successful write.
func (s *RosterService) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *RosterService) save(ctx context.Context, name storage.Collection, v any) error {
	if err := s.store.SaveCollection(ctx, name, v); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *RosterService) changed(ctx context.Context, names ...storage.Collection) {
	for _, fn := range s.onChange {
		fn()
	}
	for _, name := range names {
		slog.InfoContext(ctx, "Collection saved",
			applog.FieldComponent, applog.ComponentRoster,
			applog.FieldCollection, name)
		publish(ctx, s.publisher, amqp.NewRosterChanged(string(name)))
	}
}

// Batches lists every batch with its active head count and pending notes.
func (s *RosterService) Batches(ctx context.Context) ([]BatchView, error) {
	snap, err := storage.LoadSnapshot(ctx, s.store)
	if err != nil {
		return nil, err
	}
	out := make([]BatchView, 0, len(snap.Batches))
	for _, b := range snap.Batches {
		v := BatchView{Batch: b, PendingNotes: roster.PendingNotes(snap.Notes, b.ID)}
		for _, st := range snap.Students {
			if st.BatchID == b.ID && st.IsActive() {
				v.ActiveStudents++
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *RosterService) Batch(ctx context.Context, id string) (core.Batch, error) {
	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Batch{}, err
	}
	b, ok := roster.FindBatch(batches, id)
	if !ok {
		return core.Batch{}, fmt.Errorf("batch %s: %w", id, core.ErrUnknownBatch)
	}
	return b, nil
}

// CreateBatch stores a new batch under a generated id.
func (s *RosterService) CreateBatch(ctx context.Context, b core.Batch) (core.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Batch{}, err
	}
	b.ID = ""
	batches, created, err := roster.AddBatch(batches, b, s.newID)
	if err != nil {
		return core.Batch{}, err
	}
	if err := s.save(ctx, storage.CollectionBatches, batches); err != nil {
		return core.Batch{}, err
	}
	s.changed(ctx, storage.CollectionBatches)
	return created, nil
}

func (s *RosterService) UpdateBatch(ctx context.Context, b core.Batch) (core.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Batch{}, err
	}
	b.Name = strings.TrimSpace(b.Name)
	batches, err = roster.ReplaceBatch(batches, b)
	if err != nil {
		return core.Batch{}, err
	}
	if err := s.save(ctx, storage.CollectionBatches, batches); err != nil {
		return core.Batch{}, err
	}
	s.changed(ctx, storage.CollectionBatches)
	return b, nil
}

// ToggleBatch activates or deactivates a batch.
func (s *RosterService) ToggleBatch(ctx context.Context, id string) (core.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Batch{}, err
	}
	batches, b, err := roster.ToggleBatchActive(batches, id)
	if err != nil {
		return core.Batch{}, err
	}
	if err := s.save(ctx, storage.CollectionBatches, batches); err != nil {
		return core.Batch{}, err
	}
	s.changed(ctx, storage.CollectionBatches)
	return b, nil
}

// Students lists the students of a batch, or every student when batchID is empty.
func (s *RosterService) Students(ctx context.Context, batchID string) ([]core.Student, error) {
	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return nil, err
	}
	if batchID == "" {
		return students, nil
	}
	return roster.BatchStudents(students, batchID), nil
}

func (s *RosterService) Student(ctx context.Context, id string) (core.Student, error) {
	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return core.Student{}, err
	}
	st, ok := roster.FindStudent(students, id)
	if !ok {
		return core.Student{}, fmt.Errorf("student %s: %w", id, core.ErrUnknownStudent)
	}
	return st, nil
}

// CreateStudent enrolls a student. The enrollment date defaults to today.
func (s *RosterService) CreateStudent(ctx context.Context, st core.Student) (core.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return core.Student{}, err
	}
	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Student{}, err
	}
	if st.EnrollmentDate.IsEmpty() {
		t := s.now()
		st.EnrollmentDate = core.NewDateParts(t.Year(), t.Month(), t.Day())
	}
	st.ID = ""
	students, created, err := roster.AddStudent(students, batches, st, s.newID)
	if err != nil {
		return core.Student{}, err
	}
	if err := s.save(ctx, storage.CollectionStudents, students); err != nil {
		return core.Student{}, err
	}
	s.changed(ctx, storage.CollectionStudents)
	return created, nil
}

func (s *RosterService) UpdateStudent(ctx context.Context, st core.Student) (core.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return core.Student{}, err
	}
	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.Student{}, err
	}
	st.Name = strings.TrimSpace(st.Name)
	if st.Status == "" {
		st.Status = core.StudentActive
	}
	students, err = roster.ReplaceStudent(students, batches, st)
	if err != nil {
		return core.Student{}, err
	}
	if err := s.save(ctx, storage.CollectionStudents, students); err != nil {
		return core.Student{}, err
	}
	s.changed(ctx, storage.CollectionStudents)
	return st, nil
}

// SetStudentStatus archives or restores a student.
func (s *RosterService) SetStudentStatus(ctx context.Context, id string, status core.StudentStatus) (core.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return core.Student{}, err
	}
	students, st, err := roster.SetStudentStatus(students, id, status)
	if err != nil {
		return core.Student{}, err
	}
	if err := s.save(ctx, storage.CollectionStudents, students); err != nil {
		return core.Student{}, err
	}
	s.changed(ctx, storage.CollectionStudents)
	return st, nil
}

// Fines returns the fines of a batch dated in month, grouped per student.
func (s *RosterService) Fines(ctx context.Context, batchID string, month ledger.Period) ([]roster.StudentFines, roster.FineSummary, error) {
	snap, err := storage.LoadSnapshot(ctx, s.store)
	if err != nil {
		return nil, roster.FineSummary{}, err
	}
	if _, ok := roster.FindBatch(snap.Batches, batchID); !ok {
		return nil, roster.FineSummary{}, fmt.Errorf("batch %s: %w", batchID, core.ErrUnknownBatch)
	}
	list, sum := roster.MonthFines(snap.Students, snap.Fines, batchID, month)
	return list, sum, nil
}

func (s *RosterService) ToggleFine(ctx context.Context, id string) (core.FineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fines, err := loadList[core.FineRecord](ctx, s.store, storage.CollectionFines)
	if err != nil {
		return core.FineRecord{}, err
	}
	fines, f, err := roster.ToggleFine(fines, id)
	if err != nil {
		return core.FineRecord{}, err
	}
	if err := s.save(ctx, storage.CollectionFines, fines); err != nil {
		return core.FineRecord{}, err
	}
	s.changed(ctx, storage.CollectionFines)
	return f, nil
}

// Notes lists a batch's notes, newest first.
func (s *RosterService) Notes(ctx context.Context, batchID string) ([]core.BatchNote, error) {
	notes, err := loadList[core.BatchNote](ctx, s.store, storage.CollectionNotes)
	if err != nil {
		return nil, err
	}
	out := make([]core.BatchNote, 0)
	for _, n := range notes {
		if n.BatchID == batchID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// AddNote attaches a note to an existing batch.
func (s *RosterService) AddNote(ctx context.Context, n core.BatchNote) (core.BatchNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := loadList[core.Batch](ctx, s.store, storage.CollectionBatches)
	if err != nil {
		return core.BatchNote{}, err
	}
	if _, ok := roster.FindBatch(batches, n.BatchID); !ok {
		return core.BatchNote{}, fmt.Errorf("batch %s: %w", n.BatchID, core.ErrUnknownBatch)
	}
	notes, err := loadList[core.BatchNote](ctx, s.store, storage.CollectionNotes)
	if err != nil {
		return core.BatchNote{}, err
	}
	n.ID = ""
	notes, created, err := roster.AddNote(notes, n, s.now().UTC().Format(time.RFC3339), s.newID)
	if err != nil {
		return core.BatchNote{}, err
	}
	if err := s.save(ctx, storage.CollectionNotes, notes); err != nil {
		return core.BatchNote{}, err
	}
	s.changed(ctx, storage.CollectionNotes)
	return created, nil
}

func (s *RosterService) ToggleNote(ctx context.Context, id string) (core.BatchNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := loadList[core.BatchNote](ctx, s.store, storage.CollectionNotes)
	if err != nil {
		return core.BatchNote{}, err
	}
	notes, n, err := roster.ToggleNote(notes, id)
	if err != nil {
		return core.BatchNote{}, err
	}
	if err := s.save(ctx, storage.CollectionNotes, notes); err != nil {
		return core.BatchNote{}, err
	}
	s.changed(ctx, storage.CollectionNotes)
	return n, nil
}

// Attendance lists a batch's marks for one day.
func (s *RosterService) Attendance(ctx context.Context, batchID, date string) ([]core.AttendanceRecord, error) {
	records, err := loadList[core.AttendanceRecord](ctx, s.store, storage.CollectionAttendance)
	if err != nil {
		return nil, err
	}
	out := make([]core.AttendanceRecord, 0)
	for _, r := range records {
		if r.BatchID == batchID && r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkAttendance records the student's status for the day under the
// student's batch, creating an absence fine when asked to.
func (s *RosterService) MarkAttendance(ctx context.Context, in AttendanceInput) (core.AttendanceRecord, error) {
	if err := core.Validate(in); err != nil {
		return core.AttendanceRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := loadList[core.Student](ctx, s.store, storage.CollectionStudents)
	if err != nil {
		return core.AttendanceRecord{}, err
	}
	st, ok := roster.FindStudent(students, in.StudentID)
	if !ok {
		return core.AttendanceRecord{}, fmt.Errorf("student %s: %w", in.StudentID, core.ErrUnknownStudent)
	}
	records, err := loadList[core.AttendanceRecord](ctx, s.store, storage.CollectionAttendance)
	if err != nil {
		return core.AttendanceRecord{}, err
	}
	fines, err := loadList[core.FineRecord](ctx, s.store, storage.CollectionFines)
	if err != nil {
		return core.AttendanceRecord{}, err
	}

	priorFines := fines
	records, fines, err = roster.MarkAttendance(records, fines, roster.Mark{
		StudentID:  st.ID,
		BatchID:    st.BatchID,
		Date:       in.Date,
		Status:     in.Status,
		FineAmount: in.FineAmount,
	}, s.newID)
	if err != nil {
		return core.AttendanceRecord{}, err
	}

	// A fine is only kept when the attendance write also lands, so a failed
	// call can be retried without charging the absence twice.
	fined := len(fines) != len(priorFines)
	if fined {
		if err := s.save(ctx, storage.CollectionFines, fines); err != nil {
			return core.AttendanceRecord{}, err
		}
	}
	if err := s.save(ctx, storage.CollectionAttendance, records); err != nil {
		if fined {
			if rbErr := s.save(ctx, storage.CollectionFines, priorFines); rbErr != nil {
				slog.ErrorContext(ctx, "Failed to undo absence fine",
					applog.FieldComponent, applog.ComponentRoster,
					applog.FieldStudentID, st.ID,
					applog.FieldError, rbErr)
				s.changed(ctx, storage.CollectionFines)
			}
		}
		return core.AttendanceRecord{}, err
	}
	touched := []storage.Collection{storage.CollectionAttendance}
	if fined {
		touched = append(touched, storage.CollectionFines)
	}
	s.changed(ctx, touched...)

	for _, r := range records {
		if r.StudentID == st.ID && r.Date == in.Date {
			return r, nil
		}
	}
	return core.AttendanceRecord{}, fmt.Errorf("attendance for %s on %s: %w", st.ID, in.Date, core.ErrUnknownRecord)
}

// AttendanceRate returns the student's present share of marked days.
func (s *RosterService) AttendanceRate(ctx context.Context, studentID string) (float64, error) {
	records, err := loadList[core.AttendanceRecord](ctx, s.store, storage.CollectionAttendance)
	if err != nil {
		return 0, err
	}
	return roster.AttendanceRate(records, studentID), nil
}

func (s *RosterService) Settings(ctx context.Context) (core.Settings, error) {
	return loadSettings(ctx, s.store)
}

// SaveSettings stores settings. Empty text fields fall back to the defaults.
func (s *RosterService) SaveSettings(ctx context.Context, settings core.Settings) (core.Settings, error) {
	settings.InstituteName = strings.TrimSpace(settings.InstituteName)
	if err := settings.Validate(); err != nil {
		return core.Settings{}, err
	}
	settings = settings.WithDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, storage.CollectionSettings, settings); err != nil {
		return core.Settings{}, err
	}
	s.changed(ctx, storage.CollectionSettings)
	return settings, nil
}
