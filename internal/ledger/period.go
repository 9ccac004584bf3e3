// Package ledger derives month-by-month fee status for students and
// aggregates it into student, batch and system-wide totals.
//
// Every function here is pure: callers pass the collections and the current
// month explicitly, nothing reads the wall clock or touches storage.
package ledger

import (
	"fmt"
	"strconv"
	"time"

	"tuition/internal/core"
)

// Period identifies a calendar month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthStatus classifies a target month relative to enrollment and now.
type MonthStatus int

const (
	// PreEnrollment means the month precedes the student's enrollment month.
	PreEnrollment MonthStatus = iota
	// Payable covers every month from enrollment through the running month.
	Payable
	// Future is strictly after the running month.
	Future
)

func (s MonthStatus) String() string {
	switch s {
	case PreEnrollment:
		return "PreEnrollment"
	case Payable:
		return "Payable"
	case Future:
		return "Future"
	default:
		return fmt.Sprintf("MonthStatus(%d)", int(s))
	}
}

func (s MonthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MonthStatus) UnmarshalText(b []byte) error {
	for _, st := range []MonthStatus{PreEnrollment, Payable, Future} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown month status %q", b)
}

// YearRange bounds every scan the engine performs.
type YearRange struct {
	First int
	Last  int
}

// DefaultYears is the range offered by the product's year pickers.
var DefaultYears = YearRange{First: 2024, Last: 2027}

// Years lists the years of the range in ascending order.
func (r YearRange) Years() []int {
	if r.Last < r.First {
		return nil
	}
	out := make([]int, 0, r.Last-r.First+1)
	for y := r.First; y <= r.Last; y++ {
		out = append(out, y)
	}
	return out
}

// Contains reports whether y lies inside the range.
func (r YearRange) Contains(y int) bool {
	return y >= r.First && y <= r.Last
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod converts stored month name and year strings into a Period.
func ParsePeriod(month, year string) (Period, error) {
	m, err := core.ParseMonth(month)
	if err != nil {
		return Period{}, err
	}
	y, err := core.ParseYear(year)
	if err != nil {
		return Period{}, err
	}
	return Period{Year: y, Month: m}, nil
}

// EnrollmentPeriod returns the month a student enrolled in.
func EnrollmentPeriod(s core.Student) (Period, error) {
	return ParsePeriod(s.EnrollmentDate.Month, s.EnrollmentDate.Year)
}

// Compare orders periods by year, then month.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year:
		return -1
	case p.Year > o.Year:
		return 1
	case p.Month < o.Month:
		return -1
	case p.Month > o.Month:
		return 1
	default:
		return 0
	}
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }
func (p Period) After(o Period) bool  { return p.Compare(o) > 0 }

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// MonthName is the stored full month name.
func (p Period) MonthName() string {
	return core.MonthName(p.Month)
}

// YearString is the stored 4-digit year.
func (p Period) YearString() string {
	return strconv.Itoa(p.Year)
}

// Label is the short human label, e.g. "Mar 2024".
func (p Period) Label() string {
	name := p.MonthName()
	if len(name) > 3 {
		name = name[:3]
	}
	return fmt.Sprintf("%s %d", name, p.Year)
}

func (p Period) String() string {
	return p.Label()
}

// MonthStatusOf classifies target. The running month (target == now) is
// Payable and due immediately.
func MonthStatusOf(target, now, enrolled Period) MonthStatus {
	if target.Before(enrolled) {
		return PreEnrollment
	}
	if target.After(now) {
		return Future
	}
	return Payable
}
