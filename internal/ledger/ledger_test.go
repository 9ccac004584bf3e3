package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/core"
)

func student(id, batchID, month, year string) core.Student {
	return core.Student{
		ID:             id,
		Name:           "Student " + id,
		Roll:           "1",
		BatchID:        batchID,
		Status:         core.StudentActive,
		EnrollmentDate: core.DateParts{Day: "1", Month: month, Year: year},
	}
}

func paid(studentID, batchID, month, year string, amount int64) core.PaymentRecord {
	return core.PaymentRecord{
		ID:        fmt.Sprintf("%s-%s-%s", studentID, month, year),
		StudentID: studentID,
		BatchID:   batchID,
		Amount:    amount,
		Month:     month,
		Year:      year,
		Type:      core.PaymentMonthly,
		Status:    core.PaymentPaid,
	}
}

func seqID() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("pay_%d", n)
	}
}

func TestMonthStatusOf(t *testing.T) {
	enrolled := Period{Year: 2024, Month: time.March}
	now := Period{Year: 2025, Month: time.June}

	tests := []struct {
		name   string
		target Period
		want   MonthStatus
	}{
		{"before enrollment", Period{Year: 2024, Month: time.February}, PreEnrollment},
		{"enrollment month", enrolled, Payable},
		{"running month", now, Payable},
		{"next month", Period{Year: 2025, Month: time.July}, Future},
		{"previous year", Period{Year: 2023, Month: time.December}, PreEnrollment},
		{"next year", Period{Year: 2026, Month: time.January}, Future},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthStatusOf(tt.target, now, enrolled); got != tt.want {
				t.Errorf("MonthStatusOf(%v) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestMonthStatusOf_MonotonicInNow(t *testing.T) {
	enrolled := Period{Year: 2024, Month: time.May}
	for _, y := range DefaultYears.Years() {
		for m := time.January; m <= time.December; m++ {
			target := Period{Year: y, Month: m}
			prev := MonthStatusOf(target, Period{Year: 2024, Month: time.January}, enrolled)
			for now := (Period{Year: 2024, Month: time.January}); !now.After(Period{Year: 2027, Month: time.December}); now = now.Next() {
				got := MonthStatusOf(target, now, enrolled)
				if prev == Payable {
					require.Equal(t, Payable, got, "target %v went back from Payable at now %v", target, now)
				}
				if prev == PreEnrollment {
					require.Equal(t, PreEnrollment, got, "target %v left PreEnrollment at now %v", target, now)
				}
				prev = got
			}
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("march", "2024")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2024, Month: time.March}, p)
	assert.Equal(t, "Mar 2024", p.Label())
	assert.Equal(t, "March", p.MonthName())

	_, err = ParsePeriod("Mars", "2024")
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	_, err = ParsePeriod("March", "24")
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestPeriodNext(t *testing.T) {
	assert.Equal(t, Period{Year: 2025, Month: time.January}, Period{Year: 2024, Month: time.December}.Next())
	assert.Equal(t, Period{Year: 2024, Month: time.April}, Period{Year: 2024, Month: time.March}.Next())
}

func TestEffectiveFee(t *testing.T) {
	b := core.Batch{ID: "b1", Fee: 1000}
	s := student("s1", "b1", "March", "2024")
	assert.Equal(t, int64(1000), EffectiveFee(s, b))

	override := int64(700)
	s.MonthlyFee = &override
	assert.Equal(t, int64(700), EffectiveFee(s, b))

	zero := int64(0)
	s.MonthlyFee = &zero
	assert.Equal(t, int64(0), EffectiveFee(s, b))
}

func TestStudentDueSummary(t *testing.T) {
	b := core.Batch{ID: "b1", Name: "Physics", Fee: 1000, IsActive: true}
	s := student("s1", "b1", "March", "2024")
	payments := []core.PaymentRecord{paid("s1", "b1", "April", "2024", 1000)}
	now := Period{Year: 2025, Month: time.June}

	sum := StudentDueSummary(s, b, NewPaymentIndex(payments), now, DefaultYears)

	// March 2024 through June 2025 inclusive is 16 payable months.
	assert.Equal(t, int64(15000), sum.DueTotal)
	assert.Equal(t, int64(1000), sum.PaidTotal)
	assert.Len(t, sum.DueMonths, 15)
	assert.Equal(t, []string{"Apr 2024"}, sum.PaidMonths)
	assert.Equal(t, "Mar 2024", sum.DueMonths[0])
	assert.Equal(t, "May 2024", sum.DueMonths[1])
	assert.Equal(t, "Jun 2025", sum.DueMonths[len(sum.DueMonths)-1])
	assert.NotContains(t, sum.DueMonths, "Apr 2024")
	assert.Empty(t, sum.AdvanceMonths)
}

func TestStudentDueSummary_EveryPayableMonthClassifiedOnce(t *testing.T) {
	b := core.Batch{ID: "b1", Fee: 500}
	now := Period{Year: 2026, Month: time.February}
	s := student("s1", "b1", "November", "2024")
	payments := []core.PaymentRecord{
		paid("s1", "b1", "November", "2024", 500),
		paid("s1", "b2", "January", "2025", 500),
		paid("s1", "b1", "May", "2026", 500),
		{ID: "dup", StudentID: "s1", BatchID: "b1", Month: "November", Year: "2024", Status: core.PaymentPaid},
		{ID: "bad", StudentID: "s1", BatchID: "b1", Month: "Nope", Year: "2024", Status: core.PaymentPaid},
	}

	sum := StudentDueSummary(s, b, NewPaymentIndex(payments), now, DefaultYears)

	enrolled := Period{Year: 2024, Month: time.November}
	payable := 0
	for p := enrolled; !p.After(now); p = p.Next() {
		payable++
	}
	assert.Equal(t, payable, len(sum.DueMonths)+len(sum.PaidMonths))
	assert.Equal(t, int64(payable)*500, sum.DueTotal+sum.PaidTotal)
	assert.Equal(t, []string{"Nov 2024", "Jan 2025"}, sum.PaidMonths)
	assert.Equal(t, []string{"May 2026"}, sum.AdvanceMonths)
}

func TestStudentDueSummary_BadEnrollment(t *testing.T) {
	b := core.Batch{ID: "b1", Fee: 1000}
	s := student("s1", "b1", "Smarch", "2024")
	sum := StudentDueSummary(s, b, NewPaymentIndex(nil), Period{Year: 2025, Month: time.June}, DefaultYears)
	assert.Zero(t, sum.DueTotal)
	assert.Zero(t, sum.PaidTotal)
	assert.Empty(t, sum.DueMonths)
}

func TestTogglePayment_FutureMonthIsAdvance(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	req := ToggleRequest{
		StudentID: "s1",
		BatchID:   "b1",
		Period:    Period{Year: 2025, Month: time.July},
		Fee:       1000,
		Type:      core.PaymentMonthly,
		Now:       now,
	}
	ids := seqID()

	payments, rec := TogglePayment(nil, req, ids)
	require.Len(t, payments, 1)
	assert.Equal(t, core.PaymentAdvance, rec.Type)
	assert.Equal(t, core.PaymentPaid, rec.Status)
	assert.Equal(t, "July", rec.Month)
	assert.Equal(t, "2025", rec.Year)
	assert.Equal(t, int64(1000), rec.Amount)

	payments, rec = TogglePayment(payments, req, ids)
	require.Len(t, payments, 1)
	assert.Equal(t, core.PaymentDue, rec.Status)
	assert.Equal(t, "pay_1", rec.ID)
}

func TestTogglePayment_DoubleToggleRestoresStatus(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	original := []core.PaymentRecord{
		paid("s1", "b1", "March", "2025", 1000),
		paid("s2", "b1", "March", "2025", 1000),
	}
	req := ToggleRequest{StudentID: "s1", BatchID: "b1", Period: Period{Year: 2025, Month: time.March}, Fee: 1000, Now: now}

	once, rec := TogglePayment(original, req, seqID())
	assert.Equal(t, core.PaymentDue, rec.Status)
	assert.Equal(t, core.PaymentPaid, original[0].Status, "input must not be mutated")

	twice, rec := TogglePayment(once, req, seqID())
	assert.Equal(t, core.PaymentPaid, rec.Status)
	assert.Equal(t, original, twice)
}

func TestTogglePayment_LegacyDuplicatesMoveTogether(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	march := Period{Year: 2025, Month: time.March}
	due := paid("s1", "b1", "March", "2025", 1000)
	due.ID = "legacy-due"
	due.Status = core.PaymentDue
	payments := []core.PaymentRecord{due, paid("s1", "b1", "March", "2025", 1000)}
	require.True(t, NewPaymentIndex(payments).Paid("s1", march))

	req := ToggleRequest{StudentID: "s1", BatchID: "b1", Period: march, Fee: 1000, Now: now}
	undone, rec := TogglePayment(payments, req, seqID())
	assert.Equal(t, core.PaymentDue, rec.Status)
	assert.Equal(t, "legacy-due", rec.ID)
	assert.False(t, NewPaymentIndex(undone).Paid("s1", march))

	redone, rec := TogglePayment(undone, req, seqID())
	assert.Equal(t, core.PaymentPaid, rec.Status)
	assert.Len(t, redone, 2)
	for _, r := range redone {
		assert.Equal(t, core.PaymentPaid, r.Status)
	}
}

func TestTogglePayment_NeverDuplicates(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	ids := seqID()
	var payments []core.PaymentRecord
	for i := 0; i < 5; i++ {
		for _, m := range []time.Month{time.January, time.February, time.August} {
			req := ToggleRequest{StudentID: "s1", BatchID: "b1", Period: Period{Year: 2025, Month: m}, Fee: 800, Now: now}
			payments, _ = TogglePayment(payments, req, ids)
		}
	}
	require.Len(t, payments, 3)

	seen := make(map[string]bool)
	for _, p := range payments {
		key := p.StudentID + p.Month + p.Year
		assert.False(t, seen[key], "duplicate record for %s", key)
		seen[key] = true
	}
	// five toggles leave every month Paid
	for _, p := range payments {
		assert.Equal(t, core.PaymentPaid, p.Status)
	}
}

func TestApplyToggle_KeepsPaymentDate(t *testing.T) {
	existing := paid("s1", "b1", "March", "2025", 1000)
	existing.PaymentDate = "2025-03-05"
	rec := ApplyToggle(&existing, ToggleRequest{}, nil)
	assert.Equal(t, "2025-03-05", rec.PaymentDate)
	assert.Equal(t, existing.ID, rec.ID)

	rec = ApplyToggle(nil, ToggleRequest{
		StudentID: "s1",
		Period:    Period{Year: 2025, Month: time.March},
		Now:       Period{Year: 2025, Month: time.June},
	}, nil)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, core.PaymentMonthly, rec.Type)
}

func TestHonorariumGrid(t *testing.T) {
	s := student("s1", "b1", "March", "2025")
	adv := paid("s1", "b1", "August", "2025", 1000)
	adv.Type = core.PaymentAdvance
	payments := []core.PaymentRecord{paid("s1", "b1", "April", "2025", 1000), adv}

	cells := HonorariumGrid(s, NewPaymentIndex(payments), 2025, Period{Year: 2025, Month: time.June})
	require.Len(t, cells, 12)
	assert.Equal(t, PreEnrollment, cells[1].Status)
	assert.Equal(t, Payable, cells[2].Status)
	assert.True(t, cells[3].Paid)
	require.NotNil(t, cells[3].Record)
	assert.Equal(t, Future, cells[7].Status)
	assert.True(t, cells[7].Advance)
	assert.Nil(t, cells[4].Record)

	assert.Nil(t, HonorariumGrid(student("s2", "b1", "", ""), NewPaymentIndex(nil), 2025, Period{Year: 2025, Month: time.June}))
}

func TestSystemWideDueSummary_ExcludesArchived(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	batches := []core.Batch{{ID: "b1", Name: "Physics", Fee: 1000, IsActive: true}}

	archived := student("s1", "b1", "May", "2025")
	archived.Status = core.StudentArchive
	active := student("s2", "b1", "June", "2025")
	orphan := student("s3", "missing", "January", "2025")
	settled := student("s4", "b1", "June", "2025")
	students := []core.Student{archived, active, orphan, settled}
	payments := []core.PaymentRecord{paid("s4", "b1", "June", "2025", 1000)}

	sys := SystemWideDueSummary(students, batches, payments, now, DefaultYears)
	require.Len(t, sys.Defaulters, 1)
	assert.Equal(t, "s2", sys.Defaulters[0].StudentID)
	assert.Equal(t, "Physics", sys.Defaulters[0].BatchName)
	assert.Equal(t, int64(1000), sys.TotalDue)

	direct := StudentDueSummary(archived, batches[0], NewPaymentIndex(payments), now, DefaultYears)
	assert.Equal(t, []string{"May 2025", "Jun 2025"}, direct.DueMonths)
	assert.Equal(t, int64(2000), direct.DueTotal)
}

func TestSystemWideDueSummary_Empty(t *testing.T) {
	sys := SystemWideDueSummary(nil, nil, nil, Period{Year: 2025, Month: time.June}, DefaultYears)
	assert.Zero(t, sys.TotalDue)
	assert.NotNil(t, sys.Defaulters)
	assert.Empty(t, sys.Defaulters)
}

func TestBatchFinanceSummary_HeadcountBalances(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	b := core.Batch{ID: "b1", Name: "Chemistry", Fee: 1200, IsActive: true}
	override := int64(0)

	s1 := student("s1", "b1", "January", "2025")
	s2 := student("s2", "b1", "March", "2025")
	s2.MonthlyFee = &override
	s3 := student("s3", "b1", "January", "2025")
	s3.Status = core.StudentArchive
	s4 := student("s4", "b2", "January", "2025")
	students := []core.Student{s1, s2, s3, s4}

	payments := []core.PaymentRecord{
		paid("s1", "b1", "January", "2025", 1200),
		paid("s1", "b1", "February", "2025", 1200),
		paid("s2", "b1", "February", "2025", 0),
		paid("s3", "b1", "February", "2025", 1200),
		paid("s1", "b2", "March", "2025", 1200),
	}

	sum := BatchFinanceSummary(b, students, payments, 2025, now, DefaultYears)
	assert.Equal(t, 2, sum.ActiveCount)
	require.Len(t, sum.Months, 12)
	for _, m := range sum.Months {
		assert.Equal(t, sum.ActiveCount, m.PaidCount+m.DueCount, m.Label)
	}
	assert.Equal(t, 1, sum.Months[0].PaidCount)
	assert.Equal(t, 2, sum.Months[1].PaidCount)
	assert.Equal(t, int64(1200), sum.Months[1].Collected)
	// the March payment was recorded under another batch
	assert.Equal(t, 0, sum.Months[2].PaidCount)
	assert.True(t, sum.Months[5].Running)
	assert.True(t, sum.Months[6].Future)

	// s1 pays Jan, Feb of six payable months; s2's fee is zero.
	assert.Equal(t, int64(2400), sum.PaidTotal)
	assert.Equal(t, int64(4800), sum.DueTotal)
}

func TestMonthlyRevenue(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	batches := []core.Batch{
		{ID: "b1", Fee: 1000, IsActive: true},
		{ID: "b2", Fee: 1000, IsActive: false},
	}
	due := paid("s3", "b1", "June", "2025", 900)
	due.Status = core.PaymentDue
	payments := []core.PaymentRecord{
		paid("s1", "b1", "June", "2025", 1000),
		paid("s2", "b2", "June", "2025", 1000),
		paid("s1", "b1", "May", "2025", 1000),
		due,
		paid("s4", "gone", "June", "2025", 1000),
	}
	assert.Equal(t, int64(1000), MonthlyRevenue(payments, batches, now))
}

func TestBuildDashboard(t *testing.T) {
	now := Period{Year: 2025, Month: time.June}
	batches := []core.Batch{
		{ID: "b1", Name: "Physics", Fee: 1000, IsActive: true},
		{ID: "b2", Name: "Old", Fee: 1000, IsActive: false},
	}
	archived := student("s3", "b1", "June", "2025")
	archived.Status = core.StudentArchive
	students := []core.Student{
		student("s1", "b1", "June", "2025"),
		student("s2", "b1", "June", "2025"),
		archived,
	}
	payments := []core.PaymentRecord{paid("s1", "b1", "June", "2025", 1000)}

	d := BuildDashboard(students, batches, payments, now, DefaultYears)
	assert.Equal(t, Dashboard{
		MonthlyRevenue: 1000,
		TotalDue:       1000,
		Defaulters:     1,
		ActiveStudents: 2,
		ActiveBatches:  1,
		Schedule:       []ScheduledBatch{},
	}, d)
}

func TestIsMonthPaidScoping(t *testing.T) {
	p := Period{Year: 2025, Month: time.March}
	payments := []core.PaymentRecord{paid("s1", "b2", "March", "2025", 1000)}
	assert.True(t, IsMonthPaid(payments, "s1", p))
	assert.False(t, IsMonthPaidInBatch(payments, "s1", "b1", p))
	assert.True(t, IsMonthPaidInBatch(payments, "s1", "b2", p))

	idx := NewPaymentIndex(payments)
	assert.True(t, idx.Paid("s1", p))
	assert.False(t, idx.PaidInBatch("s1", "b1", p))
}

func TestMonthStatus_TextRoundTrip(t *testing.T) {
	for _, st := range []MonthStatus{PreEnrollment, Payable, Future} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got MonthStatus
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
	var bad MonthStatus
	assert.Error(t, bad.UnmarshalText([]byte("Overdue")))
}
