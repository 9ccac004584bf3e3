package ledger

import "tuition/internal/core"

// Defaulter is an active student with a positive lifetime due.
type Defaulter struct {
	StudentID  string   `json:"studentId"`
	Name       string   `json:"name"`
	Roll       string   `json:"roll"`
	Mobile     string   `json:"mobile"`
	BatchID    string   `json:"batchId"`
	BatchName  string   `json:"batchName"`
	DueTotal   int64    `json:"dueTotal"`
	DueMonths  []string `json:"dueMonths"`
	PaidMonths []string `json:"paidMonths"`
}

// SystemSummary aggregates dues over every active student.
type SystemSummary struct {
	TotalDue   int64       `json:"totalDue"`
	Defaulters []Defaulter `json:"defaulters"`
}

// Dashboard holds the headline figures of the home screen.
type Dashboard struct {
	MonthlyRevenue int64 `json:"monthlyRevenue"`
	TotalDue       int64 `json:"totalDue"`
	Defaulters     int   `json:"defaulters"`
	ActiveStudents int   `json:"activeStudents"`
	ActiveBatches  int   `json:"activeBatches"`

	// Schedule is filled by the caller from ActiveSchedule, which needs the
	// wall clock rather than the month.
	Schedule []ScheduledBatch `json:"schedule"`
}

// BatchesByID indexes batches by id.
func BatchesByID(batches []core.Batch) map[string]core.Batch {
	out := make(map[string]core.Batch, len(batches))
	for _, b := range batches {
		out[b.ID] = b
	}
	return out
}

// SystemWideDueSummary sums StudentDueSummary over Active students only.
// Students whose batch does not exist are left out. Defaulters keep the
// order of students.
func SystemWideDueSummary(students []core.Student, batches []core.Batch, payments []core.PaymentRecord, now Period, years YearRange) SystemSummary {
	byID := BatchesByID(batches)
	idx := NewPaymentIndex(payments)

	out := SystemSummary{Defaulters: []Defaulter{}}
	for _, s := range students {
		if !s.IsActive() {
			continue
		}
		b, ok := byID[s.BatchID]
		if !ok {
			continue
		}
		sum := StudentDueSummary(s, b, idx, now, years)
		if sum.DueTotal <= 0 {
			continue
		}
		out.TotalDue += sum.DueTotal
		out.Defaulters = append(out.Defaulters, Defaulter{
			StudentID:  s.ID,
			Name:       s.Name,
			Roll:       s.Roll,
			Mobile:     s.Mobile,
			BatchID:    b.ID,
			BatchName:  b.Name,
			DueTotal:   sum.DueTotal,
			DueMonths:  sum.DueMonths,
			PaidMonths: sum.PaidMonths,
		})
	}
	return out
}

// MonthlyRevenue sums Paid amounts recorded for now's month under active
// batches. It filters on batch activity, not student activity.
func MonthlyRevenue(payments []core.PaymentRecord, batches []core.Batch, now Period) int64 {
	byID := BatchesByID(batches)
	var total int64
	for _, p := range payments {
		if !p.IsPaid() {
			continue
		}
		b, ok := byID[p.BatchID]
		if !ok || !b.IsActive {
			continue
		}
		if matchesPeriod(p, now) {
			total += p.Amount
		}
	}
	return total
}

// BuildDashboard computes the home screen figures.
func BuildDashboard(students []core.Student, batches []core.Batch, payments []core.PaymentRecord, now Period, years YearRange) Dashboard {
	sys := SystemWideDueSummary(students, batches, payments, now, years)
	d := Dashboard{
		MonthlyRevenue: MonthlyRevenue(payments, batches, now),
		TotalDue:       sys.TotalDue,
		Defaulters:     len(sys.Defaulters),
		Schedule:       []ScheduledBatch{},
	}
	for _, s := range students {
		if s.IsActive() {
			d.ActiveStudents++
		}
	}
	for _, b := range batches {
		if b.IsActive {
			d.ActiveBatches++
		}
	}
	return d
}
