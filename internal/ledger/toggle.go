package ledger

import (
	"github.com/google/uuid"

	"tuition/internal/core"
)

// ToggleRequest describes a click on a month cell.
type ToggleRequest struct {
	StudentID   string
	BatchID     string
	Period      Period
	Fee         int64 // effective fee, see EffectiveFee
	PaymentDate string
	Type        core.PaymentType // optional, Monthly when empty
	Now         Period
}

// EffectiveFee is the student's override when set, otherwise the batch default.
func EffectiveFee(s core.Student, b core.Batch) int64 {
	if s.MonthlyFee != nil {
		return *s.MonthlyFee
	}
	return b.Fee
}

// NewID generates record identifiers.
func NewID() string {
	return uuid.NewString()
}

// ResolveType forces Advance for months after now.
func (r ToggleRequest) ResolveType() core.PaymentType {
	if r.Period.After(r.Now) {
		return core.PaymentAdvance
	}
	if r.Type == "" {
		return core.PaymentMonthly
	}
	return r.Type
}

// ApplyToggle is the single-record transition. An existing record keeps its
// id and flips between Paid and Due; otherwise a new Paid record is built.
func ApplyToggle(existing *core.PaymentRecord, req ToggleRequest, newID func() string) core.PaymentRecord {
	if existing != nil {
		rec := *existing
		rec.Status = rec.Status.Flip()
		if req.PaymentDate != "" {
			rec.PaymentDate = req.PaymentDate
		}
		return rec
	}
	if newID == nil {
		newID = NewID
	}
	return core.PaymentRecord{
		ID:          newID(),
		StudentID:   req.StudentID,
		BatchID:     req.BatchID,
		Amount:      req.Fee,
		Month:       req.Period.MonthName(),
		Year:        req.Period.YearString(),
		PaymentDate: req.PaymentDate,
		Type:        req.ResolveType(),
		Status:      core.PaymentPaid,
	}
}

// TogglePayment returns a new collection with the toggle applied and the
// affected record. It never appends when a record for
// (student, month, year) already exists.
//
// Legacy data may hold several records for one month. The month counts as
// paid when any of them is Paid (see PaymentIndex), so all of them move to
// the same status: Due if any was Paid, Paid otherwise. The first match is
// returned.
func TogglePayment(payments []core.PaymentRecord, req ToggleRequest, newID func() string) ([]core.PaymentRecord, core.PaymentRecord) {
	var matches []int
	anyPaid := false
	for i, rec := range payments {
		if rec.StudentID == req.StudentID && matchesPeriod(rec, req.Period) {
			matches = append(matches, i)
			anyPaid = anyPaid || rec.IsPaid()
		}
	}

	out := make([]core.PaymentRecord, len(payments), len(payments)+1)
	copy(out, payments)

	if len(matches) == 0 {
		rec := ApplyToggle(nil, req, newID)
		return append(out, rec), rec
	}

	target := core.PaymentPaid
	if anyPaid {
		target = core.PaymentDue
	}
	for _, i := range matches {
		rec := ApplyToggle(&out[i], req, newID)
		rec.Status = target
		out[i] = rec
	}
	return out, out[matches[0]]
}
