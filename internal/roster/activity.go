package roster

import (
	"fmt"
	"sort"
	"strings"

	"tuition/internal/core"
	"tuition/internal/ledger"
)

// AbsenceFineReason is recorded on fines created by MarkAttendance.
const AbsenceFineReason = "Absence Fine"

// ToggleFine flips a fine between Pending and Paid.
func ToggleFine(fines []core.FineRecord, id string) ([]core.FineRecord, core.FineRecord, error) {
	out := clone(fines)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = out[i].Status.Flip()
			return out, out[i], nil
		}
	}
	return fines, core.FineRecord{}, fmt.Errorf("toggle fine %s: %w", id, core.ErrUnknownRecord)
}

// StudentFines groups one student's fines of a month.
type StudentFines struct {
	Student   core.Student      `json:"student"`
	Fines     []core.FineRecord `json:"fines"`
	HasUnpaid bool              `json:"hasUnpaid"`
	Total     int64             `json:"total"`
}

// FineSummary totals a batch's fines of a month.
type FineSummary struct {
	Count     int   `json:"count"`
	Paid      int   `json:"paid"`
	Pending   int   `json:"pending"`
	Collected int64 `json:"collected"`
}

// MonthFines returns the students of a batch with fines dated in month,
// students with unpaid fines first. Fines with unparseable dates are ignored.
func MonthFines(students []core.Student, fines []core.FineRecord, batchID string, month ledger.Period) ([]StudentFines, FineSummary) {
	var sum FineSummary
	byStudent := make(map[string][]core.FineRecord)
	for _, f := range fines {
		if f.BatchID != batchID || !inMonth(f.Date, month) {
			continue
		}
		byStudent[f.StudentID] = append(byStudent[f.StudentID], f)
		sum.Count++
		if f.Status == core.FinePaid {
			sum.Paid++
			sum.Collected += f.Amount
		} else {
			sum.Pending++
		}
	}

	out := make([]StudentFines, 0)
	for _, s := range students {
		list, ok := byStudent[s.ID]
		if s.BatchID != batchID || !ok {
			continue
		}
		item := StudentFines{Student: s, Fines: list}
		for _, f := range list {
			item.Total += f.Amount
			if f.Status == core.FinePending {
				item.HasUnpaid = true
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HasUnpaid && !out[j].HasUnpaid
	})
	return out, sum
}

// AddNote appends a Pending note created at createdAt.
func AddNote(notes []core.BatchNote, n core.BatchNote, createdAt string, gen IDFunc) ([]core.BatchNote, core.BatchNote, error) {
	n.Content = strings.TrimSpace(n.Content)
	if n.Type == "" {
		n.Type = core.NoteNote
	}
	n.Status = core.NotePending
	n.CreatedAt = createdAt
	if err := n.Validate(); err != nil {
		return notes, core.BatchNote{}, fmt.Errorf("add note: %w", err)
	}
	if n.ID == "" {
		n.ID = newID(PrefixNote, gen)
	}
	return append(clone(notes), n), n, nil
}

// ToggleNote flips a note between Pending and Completed.
func ToggleNote(notes []core.BatchNote, id string) ([]core.BatchNote, core.BatchNote, error) {
	out := clone(notes)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = out[i].Status.Flip()
			return out, out[i], nil
		}
	}
	return notes, core.BatchNote{}, fmt.Errorf("toggle note %s: %w", id, core.ErrUnknownRecord)
}

// Mark is one attendance entry. FineAmount only applies when Status is Absent.
type Mark struct {
	StudentID  string
	BatchID    string
	Date       string
	Status     core.AttendanceStatus
	FineAmount int64
}

// MarkAttendance sets the student's status for a date, replacing an earlier
// mark for the same day. An absence with a positive fine also appends a
// Pending absence fine dated that day.
func MarkAttendance(records []core.AttendanceRecord, fines []core.FineRecord, m Mark, gen IDFunc) ([]core.AttendanceRecord, []core.FineRecord, error) {
	if m.Status != core.Present && m.Status != core.Absent {
		return records, fines, core.NewValidationError(fmt.Errorf("invalid attendance status %q", m.Status), core.FieldError{Field: "status", Error: "must be P or A"})
	}
	if _, err := core.ParseISODate(m.Date); err != nil {
		return records, fines, fmt.Errorf("mark attendance: %w", err)
	}
	if m.FineAmount < 0 {
		return records, fines, fmt.Errorf("mark attendance: %w", core.ErrNegativeFee)
	}

	out := clone(records)
	found := false
	for i := range out {
		if out[i].StudentID == m.StudentID && out[i].Date == m.Date {
			out[i].Status = m.Status
			found = true
			break
		}
	}
	if !found {
		out = append(out, core.AttendanceRecord{
			ID:        newID(PrefixAttendance, gen),
			StudentID: m.StudentID,
			BatchID:   m.BatchID,
			Date:      m.Date,
			Status:    m.Status,
		})
	}

	if m.Status == core.Absent && m.FineAmount > 0 {
		fines = append(clone(fines), core.FineRecord{
			ID:        newID(PrefixFine, gen),
			StudentID: m.StudentID,
			BatchID:   m.BatchID,
			Amount:    m.FineAmount,
			Reason:    AbsenceFineReason,
			Status:    core.FinePending,
			Date:      m.Date,
		})
	}
	return out, fines, nil
}

// AttendanceRate is the share of marked days the student was present, in
// [0, 1]. It is 0 when nothing was marked.
func AttendanceRate(records []core.AttendanceRecord, studentID string) float64 {
	var marked, present int
	for _, r := range records {
		if r.StudentID != studentID {
			continue
		}
		marked++
		if r.Status == core.Present {
			present++
		}
	}
	if marked == 0 {
		return 0
	}
	return float64(present) / float64(marked)
}

func inMonth(date string, month ledger.Period) bool {
	t, err := core.ParseISODate(date)
	if err != nil {
		return false
	}
	return ledger.PeriodOf(t) == month
}
