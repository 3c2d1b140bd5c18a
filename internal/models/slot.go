package models

import (
	"fmt"
	"time"
)

// TimeLayout is the wire format for day start/end times.
const TimeLayout = "15:04"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Slot is a date-bounded time interval used for overlap comparison. Times are
// half-open: a slot ending at 12:00 does not overlap one starting at 12:00.
type Slot struct {
	Date  time.Time
	Start string
	End   string
}

// NewSlot parses and validates a slot from wire values.
func NewSlot(date, start, end string) (Slot, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return Slot{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	startAt, err := time.Parse(TimeLayout, start)
	if err != nil {
		return Slot{}, fmt.Errorf("invalid start time %q: %w", start, err)
	}
	endAt, err := time.Parse(TimeLayout, end)
	if err != nil {
		return Slot{}, fmt.Errorf("invalid end time %q: %w", end, err)
	}
	if !startAt.Before(endAt) {
		return Slot{}, fmt.Errorf("start %q must be before end %q", start, end)
	}
	return Slot{Date: day, Start: start, End: end}, nil
}

// SameDay reports whether both slots fall on the same calendar date.
func (s Slot) SameDay(other Slot) bool {
	y1, m1, d1 := s.Date.Date()
	y2, m2, d2 := other.Date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Overlaps reports whether the two slots intersect. Slots on different dates
// never overlap. HH:MM strings compare lexicographically in time order.
func (s Slot) Overlaps(other Slot) bool {
	if !s.SameDay(other) {
		return false
	}
	return s.Start < other.End && other.Start < s.End
}

// DateString renders the slot date in wire format.
func (s Slot) DateString() string {
	return s.Date.Format(DateLayout)
}
