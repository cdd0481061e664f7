package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeToMinutes converts "HH:MM" into minutes since midnight.
// Input without a ':' or with non-numeric parts yields 0. Write paths must
// validate with ParseClock instead of relying on this.
func TimeToMinutes(hhmm string) int {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	mins, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return hours*60 + mins
}

// MinutesToTime renders minutes since midnight as zero-padded "HH:MM".
// Values outside [0, 1440) are not wrapped.
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseClock strictly validates a 24h "HH:MM" value and returns it in
// canonical zero-padded form.
func ParseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return "", fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return "", fmt.Errorf("invalid time %q: hour out of range", s)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins < 0 || mins > 59 {
		return "", fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return MinutesToTime(hours*60 + mins), nil
}
