package ledger

import (
	"time"

	"tuition/internal/core"
)

// BatchSummary is the finance view of one batch.
type BatchSummary struct {
	BatchID     string       `json:"batchId"`
	BatchName   string       `json:"batchName"`
	Year        int          `json:"year"`
	ActiveCount int          `json:"activeCount"`
	DueTotal    int64        `json:"dueTotal"`
	PaidTotal   int64        `json:"paidTotal"`
	Months      []BatchMonth `json:"months"`
}

// BatchMonth is the headcount view of one month of a batch.
//
// DueCount is ActiveCount - PaidCount, a headcount rather than an amount: a
// student whose fee is overridden to zero still counts.
type BatchMonth struct {
	Month     string `json:"month"`
	Label     string `json:"label"`
	Future    bool   `json:"future"`
	Running   bool   `json:"running"`
	PaidCount int    `json:"paidCount"`
	DueCount  int    `json:"dueCount"`
	Collected int64  `json:"collected"`
}

// BatchFinanceSummary restricts the ledger to the batch's active students
// and to payments tagged with the batch id. Lifetime totals span years; the
// per-month breakdown covers the selected year.
func BatchFinanceSummary(b core.Batch, students []core.Student, payments []core.PaymentRecord, year int, now Period, years YearRange) BatchSummary {
	active := make([]core.Student, 0)
	seen := make(map[string]bool)
	for _, s := range students {
		if s.BatchID != b.ID || !s.IsActive() || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		active = append(active, s)
	}

	sum := BatchSummary{
		BatchID:     b.ID,
		BatchName:   b.Name,
		Year:        year,
		ActiveCount: len(active),
		Months:      make([]BatchMonth, 0, 12),
	}

	// first paid, batch-scoped amount per (student, month)
	collected := make(map[studentKey]int64)
	for _, rec := range payments {
		if rec.BatchID != b.ID || !rec.IsPaid() || !seen[rec.StudentID] {
			continue
		}
		p, err := ParsePeriod(rec.Month, rec.Year)
		if err != nil {
			continue
		}
		k := studentKey{studentID: rec.StudentID, period: p}
		if _, ok := collected[k]; !ok {
			collected[k] = rec.Amount
		}
	}
	idx := NewPaymentIndex(payments)

	for _, s := range active {
		enrolled, err := EnrollmentPeriod(s)
		if err != nil {
			continue
		}
		fee := EffectiveFee(s, b)
		for _, y := range years.Years() {
			for m := time.January; m <= time.December; m++ {
				p := Period{Year: y, Month: m}
				if MonthStatusOf(p, now, enrolled) != Payable {
					continue
				}
				if idx.PaidInBatch(s.ID, b.ID, p) {
					sum.PaidTotal += fee
				} else {
					sum.DueTotal += fee
				}
			}
		}
	}

	for m := time.January; m <= time.December; m++ {
		p := Period{Year: year, Month: m}
		bm := BatchMonth{
			Month:   p.MonthName(),
			Label:   p.Label(),
			Future:  p.After(now),
			Running: p == now,
		}
		for _, s := range active {
			if amt, ok := collected[studentKey{studentID: s.ID, period: p}]; ok {
				bm.PaidCount++
				bm.Collected += amt
			}
		}
		bm.DueCount = sum.ActiveCount - bm.PaidCount
		sum.Months = append(sum.Months, bm)
	}
	return sum
}
