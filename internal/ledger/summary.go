package ledger

import (
	"time"

	"tuition/internal/core"
)

// StudentSummary is the lifetime fee position of one student.
type StudentSummary struct {
	StudentID     string   `json:"studentId"`
	EffectiveFee  int64    `json:"effectiveFee"`
	DueTotal      int64    `json:"dueTotal"`
	PaidTotal     int64    `json:"paidTotal"`
	DueMonths     []string `json:"dueMonths"`
	PaidMonths    []string `json:"paidMonths"`
	AdvanceMonths []string `json:"advanceMonths"`
}

// MonthCell is one cell of the per-student honorarium grid.
type MonthCell struct {
	Period  Period              `json:"-"`
	Month   string              `json:"month"`
	Label   string              `json:"label"`
	Status  MonthStatus         `json:"status"`
	Paid    bool                `json:"paid"`
	Advance bool                `json:"advance"`
	Record  *core.PaymentRecord `json:"record,omitempty"`
}

// StudentDueSummary walks every month of years from enrollment through now
// and classifies each payable month as paid or due exactly once. Payments
// are matched regardless of the batch they were recorded under.
//
// Archived students are summarized like active ones; excluding them is the
// caller's decision (see SystemWideDueSummary).
func StudentDueSummary(s core.Student, b core.Batch, idx *PaymentIndex, now Period, years YearRange) StudentSummary {
	fee := EffectiveFee(s, b)
	sum := StudentSummary{
		StudentID:     s.ID,
		EffectiveFee:  fee,
		DueMonths:     []string{},
		PaidMonths:    []string{},
		AdvanceMonths: []string{},
	}

	enrolled, err := EnrollmentPeriod(s)
	if err != nil {
		return sum
	}

	for _, y := range years.Years() {
		for m := time.January; m <= time.December; m++ {
			p := Period{Year: y, Month: m}
			paid := idx.Paid(s.ID, p)
			switch MonthStatusOf(p, now, enrolled) {
			case PreEnrollment:
				continue
			case Future:
				if paid {
					sum.AdvanceMonths = append(sum.AdvanceMonths, p.Label())
				}
				continue
			}
			if paid {
				sum.PaidTotal += fee
				sum.PaidMonths = append(sum.PaidMonths, p.Label())
			} else {
				sum.DueTotal += fee
				sum.DueMonths = append(sum.DueMonths, p.Label())
			}
		}
	}
	return sum
}

// HonorariumGrid returns the twelve cells of year for one student.
// It returns nil when the enrollment date cannot be parsed.
func HonorariumGrid(s core.Student, idx *PaymentIndex, year int, now Period) []MonthCell {
	enrolled, err := EnrollmentPeriod(s)
	if err != nil {
		return nil
	}
	cells := make([]MonthCell, 0, 12)
	for m := time.January; m <= time.December; m++ {
		p := Period{Year: year, Month: m}
		cell := MonthCell{
			Period: p,
			Month:  p.MonthName(),
			Label:  p.Label(),
			Status: MonthStatusOf(p, now, enrolled),
			Paid:   idx.Paid(s.ID, p),
		}
		if rec, ok := idx.Record(s.ID, p); ok {
			cell.Record = &rec
			cell.Advance = rec.IsPaid() && rec.Type == core.PaymentAdvance
		}
		cells = append(cells, cell)
	}
	return cells
}
