package ledger

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"tuition/internal/core"
)

// ClassLength is how long a batch counts as Running after its start time.
const ClassLength = 60 // minutes

// ScheduleStatus is where a batch's class stands relative to now.
type ScheduleStatus string

const (
	ScheduleRunning  ScheduleStatus = "Running"
	ScheduleUpcoming ScheduleStatus = "Upcoming"
)

// ScheduledBatch is one row of the dashboard's active schedule.
type ScheduledBatch struct {
	BatchID   string         `json:"batchId"`
	Name      string         `json:"name"`
	ClassName string         `json:"className,omitempty"`
	Days      []string       `json:"days"`
	Time      string         `json:"time"`
	Status    ScheduleStatus `json:"status"`
}

// ActiveSchedule lists active batches with Running ones first. A batch is
// Running while now's clock time is inside [start, start+ClassLength).
// Windows do not wrap past midnight. Batches whose time cannot be parsed
// are Upcoming. Order is otherwise kept.
func ActiveSchedule(batches []core.Batch, now time.Time) []ScheduledBatch {
	nowMinutes := now.Hour()*60 + now.Minute()
	out := make([]ScheduledBatch, 0, len(batches))
	for _, b := range batches {
		if !b.IsActive {
			continue
		}
		row := ScheduledBatch{
			BatchID:   b.ID,
			Name:      b.Name,
			ClassName: b.ClassName,
			Days:      b.Days,
			Time:      b.Time,
			Status:    ScheduleUpcoming,
		}
		if row.Days == nil {
			row.Days = []string{}
		}
		if start, ok := ParseClassTime(b.Time); ok && nowMinutes >= start && nowMinutes < start+ClassLength {
			row.Status = ScheduleRunning
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status == ScheduleRunning && out[j].Status != ScheduleRunning
	})
	return out
}

// ParseClassTime returns minutes after midnight for "h:mm AM", "h:mm PM"
// or a 24-hour "hh:mm".
func ParseClassTime(s string) (int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, false
	}
	hh, mm, found := strings.Cut(fields[0], ":")
	if !found {
		return 0, false
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}

	if len(fields) == 2 {
		if hours < 1 || hours > 12 {
			return 0, false
		}
		switch strings.ToUpper(fields[1]) {
		case "AM":
			if hours == 12 {
				hours = 0
			}
		case "PM":
			if hours < 12 {
				hours += 12
			}
		default:
			return 0, false
		}
	}
	if hours < 0 || hours > 23 {
		return 0, false
	}
	return hours*60 + minutes, true
}
