package scheduling

import "time"

const dateLayout = "2006-01-02"

// NormalizeDate truncates t to midnight UTC of its calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AdjustedWeekday maps Go's Sunday=0 weekday onto Monday=0..Sunday=6.
func AdjustedWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ExpandDates returns every date in [start, end] whose adjusted weekday is in
// daysOfWeek, in ascending order.
func ExpandDates(start, end time.Time, daysOfWeek []int) []time.Time {
	selected := make(map[int]bool, len(daysOfWeek))
	for _, d := range daysOfWeek {
		selected[d] = true
	}

	var dates []time.Time
	last := NormalizeDate(end)
	for d := NormalizeDate(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		if selected[AdjustedWeekday(d)] {
			dates = append(dates, d)
		}
	}
	return dates
}
