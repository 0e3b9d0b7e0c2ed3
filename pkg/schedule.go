package pkg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Weekdays lists the schedule keys in calendar order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var (
	// ErrUnknownDay is returned when an exercise targets a key that is not
	// one of the seven weekday names.
	ErrUnknownDay = errors.New("invalid day provided")
	// ErrExerciseName is returned when an exercise has no name.
	ErrExerciseName = errors.New("exercise name is required")
)

// Exercise is a loosely typed exercise entry.  It always has a name and may
// carry sets, reps, description and purpose as produced by the assistant or
// entered by the therapist.
type Exercise map[string]any

// Name returns the exercise name, or "" when it has none.
func (e Exercise) Name() string {
	if e == nil {
		return ""
	}
	switch v := e["name"].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// WeeklySchedule maps each weekday to the ordered exercises for that day.
type WeeklySchedule map[string][]Exercise

// NewWeeklySchedule returns a schedule with every weekday mapped to an empty
// list.
func NewWeeklySchedule() WeeklySchedule {
	s := make(WeeklySchedule, len(Weekdays))
	for _, d := range Weekdays {
		s[d] = []Exercise{}
	}
	return s
}

// IsWeekday reports whether day is one of the canonical weekday names.
func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// AddExercise appends ex to day.  Unknown days and unnamed exercises are
// rejected without touching the schedule.
func (s WeeklySchedule) AddExercise(day string, ex Exercise) error {
	if !IsWeekday(day) {
		return fmt.Errorf("%w: %q", ErrUnknownDay, day)
	}
	if ex.Name() == "" {
		return ErrExerciseName
	}
	s[day] = append(s[day], ex)
	return nil
}

// Normalize fills in any missing weekday and drops keys that are not
// weekdays, so a schedule read from an older snapshot keeps the seven-key
// shape.
func (s WeeklySchedule) Normalize() WeeklySchedule {
	out := NewWeeklySchedule()
	for _, d := range Weekdays {
		if ex := s[d]; len(ex) > 0 {
			out[d] = ex
		}
	}
	return out
}

// Clone returns a deep copy of the schedule.
func (s WeeklySchedule) Clone() WeeklySchedule {
	out := make(WeeklySchedule, len(s))
	for d, list := range s {
		cp := make([]Exercise, len(list))
		for i, ex := range list {
			cp[i] = cloneExercise(ex)
		}
		out[d] = cp
	}
	return out
}

func cloneExercise(ex Exercise) Exercise {
	if ex == nil {
		return nil
	}
	cp := make(Exercise, len(ex))
	for k, v := range ex {
		cp[k] = v
	}
	return cp
}

// AggregateSchedule combines every patient's schedule into the therapist's
// week.  Each entry reads "{identifier}: {exercise name}"; patients are
// visited in identifier order so the output is stable.
func AggregateSchedule(patients map[string]*Patient) map[string][]string {
	out := make(map[string][]string, len(Weekdays))
	for _, d := range Weekdays {
		out[d] = []string{}
	}

	ids := make([]string, 0, len(patients))
	for id := range patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := patients[id]
		if p == nil {
			continue
		}
		for _, d := range Weekdays {
			for _, ex := range p.WeeklySchedule[d] {
				label := ex.Name()
				if label == "" {
					label = fmt.Sprint(map[string]any(ex))
				}
				out[d] = append(out[d], id+": "+label)
			}
		}
	}
	return out
}
