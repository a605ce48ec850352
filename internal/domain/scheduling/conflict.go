package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate is one slot about to be created.
type Candidate struct {
	Date      time.Time
	StartTime string
	EndTime   string
}

func candidateKey(date time.Time, start string) string {
	return date.Format(dateLayout) + " " + start
}

// ConflictingSlot describes an existing slot that collides with a candidate.
type ConflictingSlot struct {
	ID              uuid.UUID `json:"id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	CurrentBookings int       `json:"currentBookings"`
	MaxBookings     int       `json:"maxBookings"`
	HasBookings     bool      `json:"hasBookings"`
}

type ConflictReport struct {
	Count int               `json:"count"`
	Slots []ConflictingSlot `json:"conflicts"`
}

// ConflictError is returned when candidates collide with existing slots and
// replacement was not requested.
type ConflictError struct {
	Report ConflictReport
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d slot(s) already exist at the requested times", e.Report.Count)
}

// matchConflicts keeps the existing slots whose (date, start time) pair is
// one of the candidates. Slots are matched on start time only, the same key
// as the (doctor_id, date, start_time) uniqueness constraint.
func matchConflicts(existing []*Slot, candidates []Candidate) []*Slot {
	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[candidateKey(c.Date, c.StartTime)] = true
	}
	var out []*Slot
	for _, s := range existing {
		if wanted[candidateKey(NormalizeDate(s.Date), s.StartTime)] {
			out = append(out, s)
		}
	}
	return out
}

func newConflictReport(conflicts []*Slot, liveBookings map[uuid.UUID]int) ConflictReport {
	r := ConflictReport{Count: len(conflicts), Slots: make([]ConflictingSlot, 0, len(conflicts))}
	for _, s := range conflicts {
		r.Slots = append(r.Slots, ConflictingSlot{
			ID:              s.ID,
			Date:            s.Date.Format(dateLayout),
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
			CurrentBookings: s.CurrentBookings,
			MaxBookings:     s.MaxBookings,
			HasBookings:     liveBookings[s.ID] > 0,
		})
	}
	return r
}

// TaskWindow is a doctor task with a defined time-of-day window.
type TaskWindow struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
}

// TasksInfo annotates a slot creation with overlapping tasks. It never
// blocks creation.
type TasksInfo struct {
	Count   int          `json:"count"`
	Message string       `json:"message"`
	Tasks   []TaskWindow `json:"tasks"`
}

// OverlappingTasks returns the tasks whose window overlaps any candidate on
// the same date, or nil when none do. Tasks with malformed times are ignored.
func OverlappingTasks(tasks []TaskWindow, candidates []Candidate) *TasksInfo {
	byDate := make(map[string][]Candidate)
	for _, c := range candidates {
		k := c.Date.Format(dateLayout)
		byDate[k] = append(byDate[k], c)
	}

	var hits []TaskWindow
	for _, t := range tasks {
		tStart, err1 := parseClock(t.StartTime)
		tEnd, err2 := parseClock(t.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		for _, c := range byDate[NormalizeDate(t.Date).Format(dateLayout)] {
			cStart, _ := parseClock(c.StartTime)
			cEnd, _ := parseClock(c.EndTime)
			if overlaps(tStart, tEnd, cStart, cEnd) {
				hits = append(hits, t)
				break
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}

	parts := make([]string, len(hits))
	for i, t := range hits {
		parts[i] = fmt.Sprintf("%s (%s %s-%s)", t.Title, NormalizeDate(t.Date).Format(dateLayout), t.StartTime, t.EndTime)
	}
	return &TasksInfo{
		Count:   len(hits),
		Message: fmt.Sprintf("%d task(s) overlap the new slots: %s", len(hits), strings.Join(parts, ", ")),
		Tasks:   hits,
	}
}
