package availability

import "testing"

func TestTimeToMinutes(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"08:30": 510,
		"17:30": 1050,
		"23:59": 1439,
		"":      0,
		"0830":  0,
		"ab:cd": 0,
	}
	for in, want := range cases {
		if got := TimeToMinutes(in); got != want {
			t.Fatalf("TimeToMinutes(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestMinutesToTimeRoundTrip(t *testing.T) {
	for m := 0; m < 24*60; m++ {
		s := MinutesToTime(m)
		if got := TimeToMinutes(s); got != m {
			t.Fatalf("round trip of %d via %q gave %d", m, s, got)
		}
		if MinutesToTime(TimeToMinutes(s)) != s {
			t.Fatalf("round trip of %q not stable", s)
		}
	}
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("9:05")
	if err != nil || got != "09:05" {
		t.Fatalf("ParseClock(9:05) = %q, %v", got, err)
	}
	for _, bad := range []string{"", "24:00", "12:60", "12:5", "noon", "123:00"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
