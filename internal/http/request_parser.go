package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"tuition/internal/core"
	"tuition/internal/ledger"
)

// parseYear reads the "year" query parameter, defaulting to now's year.
func parseYear(c echo.Context, now time.Time) (int, error) {
	v := strings.TrimSpace(c.QueryParam("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := core.ParseYear(v)
	if err != nil {
		return 0, core.NewValidationError(err, core.FieldError{Field: "year", Error: "must be a 4-digit year"})
	}
	return y, nil
}

// parseMonthPeriod reads "month" and "year" query parameters. The month may
// be a full name ("June") or a number (6). Missing values default to now.
func parseMonthPeriod(c echo.Context, now time.Time) (ledger.Period, error) {
	year, err := parseYear(c, now)
	if err != nil {
		return ledger.Period{}, err
	}
	p := ledger.Period{Year: year, Month: now.Month()}

	v := strings.TrimSpace(c.QueryParam("month"))
	if v == "" {
		return p, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return ledger.Period{}, core.NewValidationError(fmt.Errorf("month %d out of range", n), core.FieldError{Field: "month", Error: "must be 1-12"})
		}
		p.Month = time.Month(n)
		return p, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return ledger.Period{}, core.NewValidationError(err, core.FieldError{Field: "month", Error: "must be a month name or number"})
	}
	p.Month = m
	return p, nil
}

// parseDate reads the "date" query parameter as YYYY-MM-DD, defaulting to now.
func parseDate(c echo.Context, now time.Time) (string, error) {
	v := strings.TrimSpace(c.QueryParam("date"))
	if v == "" {
		return now.Format("2006-01-02"), nil
	}
	if _, err := core.ParseISODate(v); err != nil {
		return "", core.NewValidationError(err, core.FieldError{Field: "date", Error: "must be a YYYY-MM-DD date"})
	}
	return v, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
