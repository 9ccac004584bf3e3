package google

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tuition/internal/ledger"
	ports "tuition/internal/sheets"
)

// Sheet layout:
//
//	row 1: Period | <month> | <year> | Generated | <RFC3339> | Revenue | <amount>
//	row 2: column headers
//	rows:  one per defaulter
//	last:  TOTAL ... <total due>
var header = []any{"Name", "Roll", "Mobile", "Batch", "Due Months", "Paid Months", "Due Total"}

const (
	metaPeriod = "Period"
	totalLabel = "TOTAL"
	listSep    = ", "
)

func reportRows(r ports.Report) [][]any {
	rows := make([][]any, 0, len(r.Summary.Defaulters)+3)
	rows = append(rows, []any{
		metaPeriod, r.Period.MonthName(), r.Period.YearString(),
		"Generated", r.GeneratedAt.UTC().Format(time.RFC3339),
		"Revenue", r.MonthlyRevenue,
	})
	rows = append(rows, header)
	for _, d := range r.Summary.Defaulters {
		rows = append(rows, []any{
			d.Name,
			d.Roll,
			// leading apostrophe keeps phone numbers as text under USER_ENTERED
			"'" + d.Mobile,
			d.BatchName,
			strings.Join(d.DueMonths, listSep),
			strings.Join(d.PaidMonths, listSep),
			d.DueTotal,
		})
	}
	rows = append(rows, []any{totalLabel, "", "", "", "", "", r.Summary.TotalDue})
	return rows
}

// parseReport is the inverse of reportRows. Student and batch ids are not
// exported, so they come back empty.
func parseReport(values [][]any) (ports.Report, error) {
	if len(values) < 3 {
		return ports.Report{}, errors.New("report sheet too short")
	}
	meta := values[0]
	if len(meta) < 7 || toString(meta[0]) != metaPeriod {
		return ports.Report{}, errors.New("report sheet missing period row")
	}

	var r ports.Report
	p, err := ledger.ParsePeriod(toString(meta[1]), toString(meta[2]))
	if err != nil {
		return ports.Report{}, fmt.Errorf("report period: %w", err)
	}
	r.Period = p
	if ts, err := time.Parse(time.RFC3339, toString(meta[4])); err == nil {
		r.GeneratedAt = ts
	}
	r.MonthlyRevenue = toInt64(meta[6])

	r.Summary.Defaulters = []ledger.Defaulter{}
	for _, row := range values[2:] {
		if len(row) == 0 {
			continue
		}
		if toString(row[0]) == totalLabel {
			if len(row) > 6 {
				r.Summary.TotalDue = toInt64(row[6])
			}
			break
		}
		d := ledger.Defaulter{
			Name:       cell(row, 0),
			Roll:       cell(row, 1),
			Mobile:     strings.TrimPrefix(cell(row, 2), "'"),
			BatchName:  cell(row, 3),
			DueMonths:  splitList(cell(row, 4)),
			PaidMonths: splitList(cell(row, 5)),
		}
		if len(row) > 6 {
			d.DueTotal = toInt64(row[6])
		}
		r.Summary.Defaulters = append(r.Summary.Defaulters, d)
	}
	return r, nil
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return toString(row[i])
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(math.Round(t))
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Round(f))
		}
	}
	return 0
}
