package availability

import "time"

// Interval is a half-open range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps uses half-open semantics: [a,b) and [c,d) overlap iff a < d && b > c.
// Touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

// Booking is the engine's view of an appointment that already holds time on
// a date.
type Booking struct {
	ID              string
	Start           string
	DurationMinutes int
}

func (b Booking) duration() int {
	if b.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return b.DurationMinutes
}

// BlockedInterval is the footprint of a service for conflict purposes:
// [start, start+duration+buffer).
func (c Config) BlockedInterval(start string, durationMinutes int) Interval {
	s := TimeToMinutes(start)
	return Interval{Start: s, End: s + durationMinutes + c.HygienizationBufferMinutes}
}

// Conflicts reports whether candidate overlaps the blocked interval of any
// booking. The buffer is part of every booking's own interval.
func (c Config) Conflicts(candidate Interval, booked []Booking) bool {
	for _, b := range booked {
		if candidate.Overlaps(c.BlockedInterval(b.Start, b.duration())) {
			return true
		}
	}
	return false
}

// StartsTooLate reports whether a slot starting at start minutes begins after
// the day's last permitted start.
func (s DaySchedule) StartsTooLate(start int) bool {
	return start > TimeToMinutes(s.LastStart)
}

// EndsAfterClosing reports whether a blocked interval ending at end runs past
// closing time.
func (s DaySchedule) EndsAfterClosing(end int) bool {
	return end > TimeToMinutes(s.Closing)
}

// GenerateTimeSlots lists candidate start times from opening to last start
// inclusive, stepping 60 minutes when hourlyOnly and SlotIntervalMinutes
// otherwise. Hourly output always ends with the exact last start. Closed days
// are walked like any other day.
func (c Config) GenerateTimeSlots(day time.Time, hourlyOnly bool) []string {
	s := c.DaySchedule(day)
	step := c.slotInterval()
	if hourlyOnly {
		step = 60
	}
	open, last := TimeToMinutes(s.Opening), TimeToMinutes(s.LastStart)

	var slots []string
	t := open
	for ; t <= last; t += step {
		slots = append(slots, MinutesToTime(t))
	}
	if hourlyOnly && t-step != last {
		slots = append(slots, MinutesToTime(last))
	}
	return slots
}

// IsSlotAvailable decides whether a service of durationMinutes may start at
// start on day given the bookings already holding that date. It does not
// look at IsClosed. Durations longer than a day never fit.
func (c Config) IsSlotAvailable(start string, durationMinutes int, booked []Booking, day time.Time) bool {
	if durationMinutes > MaxDurationMinutes {
		return false
	}
	candidate := c.BlockedInterval(start, durationMinutes)
	s := c.DaySchedule(day)
	if s.EndsAfterClosing(candidate.End) || s.StartsTooLate(candidate.Start) {
		return false
	}
	return !c.Conflicts(candidate, booked)
}

// AvailableSlots returns the generated slots of day that are still free for a
// service of durationMinutes. Closed days have none.
func (c Config) AvailableSlots(day time.Time, durationMinutes int, hourlyOnly bool, booked []Booking) []string {
	if c.DaySchedule(day).IsClosed {
		return nil
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	var out []string
	for _, slot := range c.GenerateTimeSlots(day, hourlyOnly) {
		if c.IsSlotAvailable(slot, durationMinutes, booked, day) {
			out = append(out, slot)
		}
	}
	return out
}

// DropStarted removes slots that have already begun when day is the current
// date in now's location. Other dates are returned unchanged.
func DropStarted(slots []string, day, now time.Time) []string {
	now = now.In(day.Location())
	y, m, d := day.Date()
	ny, nm, nd := now.Date()
	if y != ny || m != nm || d != nd {
		if day.Before(now) {
			return nil
		}
		return slots
	}
	current := now.Hour()*60 + now.Minute()
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if TimeToMinutes(s) > current {
			out = append(out, s)
		}
	}
	return out
}
