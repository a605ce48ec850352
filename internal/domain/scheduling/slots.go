package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTime = errors.New("invalid time, expected HH:MM")

// GenerateTimeSlots splits [startTime, endTime) into duration-minute
// intervals, skipping any interval that overlaps [breakStart, breakEnd).
// After a skipped interval the next one starts at breakEnd, even when that
// is off the grid defined by startTime. The break applies only when both of
// its ends are given.
func GenerateTimeSlots(startTime, endTime string, duration int, breakStart, breakEnd string) ([]TimeSlot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", duration)
	}
	start, err := parseClock(startTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(endTime)
	if err != nil {
		return nil, err
	}

	hasBreak := breakStart != "" && breakEnd != ""
	var bStart, bEnd int
	if hasBreak {
		if bStart, err = parseClock(breakStart); err != nil {
			return nil, err
		}
		if bEnd, err = parseClock(breakEnd); err != nil {
			return nil, err
		}
	}

	slots := []TimeSlot{}
	for cur := start; cur <= end-duration; {
		next := cur + duration
		if hasBreak && overlaps(cur, next, bStart, bEnd) {
			// An overlapping candidate always starts before bEnd.
			cur = bEnd
			continue
		}
		slots = append(slots, TimeSlot{StartTime: formatClock(cur), EndTime: formatClock(next)})
		cur = next
	}
	return slots, nil
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// overlaps is the half-open interval test used for breaks and tasks.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}
