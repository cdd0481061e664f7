package availability

import (
	"regexp"
	"strconv"
)

var (
	hoursPattern   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*m`)
)

// ParseDuration reads a human duration such as "1h20m", "20min" or "2h".
// Hour and minute parts are matched independently, so "1h 20 m" also works.
// Empty or unrecognised text yields DefaultDurationMinutes, never zero.
func ParseDuration(text string) int {
	if text == "" {
		return DefaultDurationMinutes
	}
	total := 0
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n * 60
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
	}
	if total <= 0 {
		return DefaultDurationMinutes
	}
	return total
}
