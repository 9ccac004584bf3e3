package ledger

import "tuition/internal/core"

type studentKey struct {
	studentID string
	period    Period
}

type batchKey struct {
	studentID string
	batchID   string
	period    Period
}

// PaymentIndex answers paid lookups in O(1). Build it once per query batch.
//
// Records whose month or year cannot be parsed are skipped. When legacy data
// holds several records for one month the month counts as paid if any of
// them is Paid.
type PaymentIndex struct {
	paid        map[studentKey]bool
	paidInBatch map[batchKey]bool
	records     map[studentKey]int
	payments    []core.PaymentRecord
}

// NewPaymentIndex indexes payments.
func NewPaymentIndex(payments []core.PaymentRecord) *PaymentIndex {
	idx := &PaymentIndex{
		paid:        make(map[studentKey]bool, len(payments)),
		paidInBatch: make(map[batchKey]bool, len(payments)),
		records:     make(map[studentKey]int, len(payments)),
		payments:    payments,
	}
	for i, p := range payments {
		period, err := ParsePeriod(p.Month, p.Year)
		if err != nil {
			continue
		}
		sk := studentKey{studentID: p.StudentID, period: period}
		if _, ok := idx.records[sk]; !ok {
			idx.records[sk] = i
		}
		if !p.IsPaid() {
			continue
		}
		idx.paid[sk] = true
		idx.paidInBatch[batchKey{studentID: p.StudentID, batchID: p.BatchID, period: period}] = true
	}
	return idx
}

// Paid reports whether the student paid for p under any batch.
func (idx *PaymentIndex) Paid(studentID string, p Period) bool {
	return idx.paid[studentKey{studentID: studentID, period: p}]
}

// PaidInBatch reports whether the student paid for p with a record tagged to batchID.
func (idx *PaymentIndex) PaidInBatch(studentID, batchID string, p Period) bool {
	return idx.paidInBatch[batchKey{studentID: studentID, batchID: batchID, period: p}]
}

// Record returns the first stored record for (student, p), paid or not.
func (idx *PaymentIndex) Record(studentID string, p Period) (core.PaymentRecord, bool) {
	i, ok := idx.records[studentKey{studentID: studentID, period: p}]
	if !ok {
		return core.PaymentRecord{}, false
	}
	return idx.payments[i], true
}

// IsMonthPaid is the unscoped lookup used by lifetime due calculations.
func IsMonthPaid(payments []core.PaymentRecord, studentID string, p Period) bool {
	for _, rec := range payments {
		if rec.StudentID != studentID || !rec.IsPaid() {
			continue
		}
		if matchesPeriod(rec, p) {
			return true
		}
	}
	return false
}

// IsMonthPaidInBatch is the batch-scoped lookup used by batch finance views.
func IsMonthPaidInBatch(payments []core.PaymentRecord, studentID, batchID string, p Period) bool {
	for _, rec := range payments {
		if rec.StudentID != studentID || rec.BatchID != batchID || !rec.IsPaid() {
			continue
		}
		if matchesPeriod(rec, p) {
			return true
		}
	}
	return false
}

func matchesPeriod(rec core.PaymentRecord, p Period) bool {
	period, err := ParsePeriod(rec.Month, rec.Year)
	return err == nil && period == p
}
