package availability

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DaySchedule is the opening window that applies to one calendar date.
// Closed days still carry a valid triple; check IsClosed.
type DaySchedule struct {
	Opening   string `json:"opening"`
	LastStart string `json:"last_start"`
	Closing   string `json:"closing"`
	IsClosed  bool   `json:"is_closed"`
}

// ParseDate reads a YYYY-MM-DD civil date at local midnight in the
// configured location.
func (c Config) ParseDate(s string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), c.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return day, nil
}

// FormatDate renders the civil date of day.
func FormatDate(day time.Time) string {
	return day.Format(dateLayout)
}

// DaySchedule resolves the schedule for the weekday of day.
func (c Config) DaySchedule(day time.Time) DaySchedule {
	wd := day.Weekday()
	s := c.apply(c.base(), wd)
	s.IsClosed = c.IsClosedDay(wd)
	return s
}

// IsClosedDay reports whether wd is in the closed set.
func (c Config) IsClosedDay(wd time.Weekday) bool {
	for _, closed := range c.ClosedDays {
		if closed == wd {
			return true
		}
	}
	return false
}

func (c Config) base() DaySchedule {
	return DaySchedule{Opening: c.Opening, LastStart: c.LastStart, Closing: c.Closing}
}

func (c Config) apply(s DaySchedule, wd time.Weekday) DaySchedule {
	o, ok := c.Overrides[wd]
	if !ok {
		return s
	}
	if o.Opening != "" {
		s.Opening = o.Opening
	}
	if o.LastStart != "" {
		s.LastStart = o.LastStart
	}
	if o.Closing != "" {
		s.Closing = o.Closing
	}
	return s
}
