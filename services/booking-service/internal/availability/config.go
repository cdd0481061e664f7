package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/podologia/agenda/libs/config"
)

// DefaultDurationMinutes is used whenever a service or appointment has no
// usable duration.
const DefaultDurationMinutes = 60

// MaxDurationMinutes bounds any service duration to one day.
const MaxDurationMinutes = 24 * 60

const (
	defaultSlotIntervalMinutes = 30
	defaultBufferMinutes       = 15
)

// DayOverride replaces individual schedule fields for one weekday. Empty
// fields inherit the default schedule.
type DayOverride struct {
	Opening   string
	LastStart string
	Closing   string
}

// Config holds every scheduling constant of the practice.
type Config struct {
	Opening   string
	LastStart string
	Closing   string

	Overrides  map[time.Weekday]DayOverride
	ClosedDays []time.Weekday

	// HygienizationBufferMinutes is kept clear after every appointment.
	HygienizationBufferMinutes int
	SlotIntervalMinutes        int

	Location *time.Location
}

// DefaultConfig returns the practice's reference schedule.
func DefaultConfig() Config {
	return Config{
		Opening:   "08:30",
		LastStart: "17:30",
		Closing:   "18:30",
		Overrides: map[time.Weekday]DayOverride{
			time.Saturday: {Opening: "09:00"},
			time.Tuesday:  {LastStart: "15:30"},
		},
		ClosedDays:                 []time.Weekday{time.Sunday, time.Thursday},
		HygienizationBufferMinutes: defaultBufferMinutes,
		SlotIntervalMinutes:        defaultSlotIntervalMinutes,
		Location:                   time.Local,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies SCHEDULE_* overrides.
//
//	SCHEDULE_OPENING=08:30
//	SCHEDULE_LAST_START=17:30
//	SCHEDULE_CLOSING=18:30
//	SCHEDULE_OVERRIDES=sat.opening=09:00,tue.last_start=15:30
//	SCHEDULE_CLOSED_DAYS=sun,thu
//	HYGIENIZATION_BUFFER_MINUTES=15
//	SLOT_INTERVAL_MINUTES=30
//	TZ_LOCATION=America/Sao_Paulo
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.Opening, err = ParseClock(config.String("SCHEDULE_OPENING", cfg.Opening)); err != nil {
		return Config{}, fmt.Errorf("SCHEDULE_OPENING: %w", err)
	}
	if cfg.LastStart, err = ParseClock(config.String("SCHEDULE_LAST_START", cfg.LastStart)); err != nil {
		return Config{}, fmt.Errorf("SCHEDULE_LAST_START: %w", err)
	}
	if cfg.Closing, err = ParseClock(config.String("SCHEDULE_CLOSING", cfg.Closing)); err != nil {
		return Config{}, fmt.Errorf("SCHEDULE_CLOSING: %w", err)
	}
	if raw, ok := config.Lookup("SCHEDULE_OVERRIDES"); ok {
		if cfg.Overrides, err = ParseOverrides(raw); err != nil {
			return Config{}, fmt.Errorf("SCHEDULE_OVERRIDES: %w", err)
		}
	}
	if raw, ok := config.Lookup("SCHEDULE_CLOSED_DAYS"); ok {
		if cfg.ClosedDays, err = ParseWeekdays(raw); err != nil {
			return Config{}, fmt.Errorf("SCHEDULE_CLOSED_DAYS: %w", err)
		}
	}
	if cfg.HygienizationBufferMinutes, err = config.Int("HYGIENIZATION_BUFFER_MINUTES", cfg.HygienizationBufferMinutes); err != nil {
		return Config{}, err
	}
	if cfg.HygienizationBufferMinutes < 0 {
		return Config{}, fmt.Errorf("HYGIENIZATION_BUFFER_MINUTES must not be negative")
	}
	if cfg.SlotIntervalMinutes, err = config.Int("SLOT_INTERVAL_MINUTES", cfg.SlotIntervalMinutes); err != nil {
		return Config{}, err
	}
	if cfg.SlotIntervalMinutes <= 0 {
		return Config{}, fmt.Errorf("SLOT_INTERVAL_MINUTES must be positive")
	}
	if name := config.String("TZ_LOCATION", ""); name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return Config{}, fmt.Errorf("TZ_LOCATION: %w", err)
		}
		cfg.Location = loc
	}
	return cfg, cfg.Validate()
}

// Validate checks opening <= lastStart < closing for the default schedule
// and for every override.
func (c Config) Validate() error {
	check := func(label string, s DaySchedule) error {
		open, last, closing := TimeToMinutes(s.Opening), TimeToMinutes(s.LastStart), TimeToMinutes(s.Closing)
		if open > last || last >= closing {
			return fmt.Errorf("%s schedule must satisfy opening <= last start < closing (got %s/%s/%s)",
				label, s.Opening, s.LastStart, s.Closing)
		}
		return nil
	}
	if err := check("default", c.base()); err != nil {
		return err
	}
	for _, wd := range sortedWeekdays(c.Overrides) {
		if err := check(strings.ToLower(wd.String()), c.apply(c.base(), wd)); err != nil {
			return err
		}
	}
	return nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "dom": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "seg": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "ter": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "qua": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "qui": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "sex": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "sab": time.Saturday,
}

// ParseWeekday accepts an English or Portuguese abbreviation, a full English
// name, or the index 0 (Sunday) through 6 (Saturday).
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[s]; ok {
		return wd, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return time.Weekday(n), nil
}

// ParseWeekdays parses a comma separated weekday list. An empty string means
// no closed days.
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		wd, err := ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		out = append(out, wd)
	}
	return out, nil
}

// ParseOverrides parses "sat.opening=09:00,tue.last_start=15:30".
func ParseOverrides(raw string) (map[time.Weekday]DayOverride, error) {
	out := map[time.Weekday]DayOverride{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("override %q: want day.field=HH:MM", part)
		}
		dayName, field, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fmt.Errorf("override %q: want day.field=HH:MM", part)
		}
		wd, err := ParseWeekday(dayName)
		if err != nil {
			return nil, err
		}
		clock, err := ParseClock(value)
		if err != nil {
			return nil, err
		}
		o := out[wd]
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "opening":
			o.Opening = clock
		case "last_start":
			o.LastStart = clock
		case "closing":
			o.Closing = clock
		default:
			return nil, fmt.Errorf("override %q: unknown field %q", part, field)
		}
		out[wd] = o
	}
	return out, nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Config) slotInterval() int {
	if c.SlotIntervalMinutes <= 0 {
		return defaultSlotIntervalMinutes
	}
	return c.SlotIntervalMinutes
}

func sortedWeekdays(m map[time.Weekday]DayOverride) []time.Weekday {
	out := make([]time.Weekday, 0, len(m))
	for wd := range m {
		out = append(out, wd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
