package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthNames are the full English month names used in stored records.
var MonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DateParts is the day/month-name/year triple entered in forms and persisted as-is.
type DateParts struct {
	Day   string `json:"day"`
	Month string `json:"month"`
	Year  string `json:"year"`
}

// NewDateParts builds a DateParts from a calendar date.
func NewDateParts(year int, month time.Month, day int) DateParts {
	return DateParts{
		Day:   fmt.Sprintf("%02d", day),
		Month: MonthName(month),
		Year:  strconv.Itoa(year),
	}
}

// IsEmpty returns true if no component was provided.
func (d DateParts) IsEmpty() bool {
	return d.Day == "" && d.Month == "" && d.Year == ""
}

// Validate rejects unknown month names and non 4-digit years.
// The day is optional; when present it must be 1-31.
func (d DateParts) Validate() error {
	if _, err := ParseMonth(d.Month); err != nil {
		return err
	}
	if _, err := ParseYear(d.Year); err != nil {
		return err
	}
	if strings.TrimSpace(d.Day) != "" {
		day, err := strconv.Atoi(strings.TrimSpace(d.Day))
		if err != nil || day < 1 || day > 31 {
			return fmt.Errorf("%w: day %q", ErrInvalidDate, d.Day)
		}
	}
	return nil
}

// MonthName returns the stored name for m, or "" when m is out of range.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return MonthNames[m-1]
}

// ParseMonth converts a full month name into a time.Month.
// Matching is case-insensitive; abbreviations are not accepted.
func ParseMonth(name string) (time.Month, error) {
	name = strings.TrimSpace(name)
	for i, n := range MonthNames {
		if strings.EqualFold(n, name) {
			return time.Month(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: month %q", ErrInvalidDate, name)
}

// ParseYear parses a 4-digit year string.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: year %q", ErrInvalidDate, s)
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 {
		return 0, fmt.Errorf("%w: year %q", ErrInvalidDate, s)
	}
	return y, nil
}

// ParseISODate parses a YYYY-MM-DD date as used by attendance, fines and payments.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
