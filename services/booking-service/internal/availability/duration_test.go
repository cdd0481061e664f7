package availability

import "testing"

func TestParseDuration(t *testing.T) {
	cases := map[string]int{
		"1h20m":      80,
		"20min":      20,
		"2h":         120,
		"1h 20 m":    80,
		"1H30M":      90,
		"45 minutos": 45,
		"":           60,
		"foo":        60,
		"0h":         60,
	}
	for in, want := range cases {
		if got := ParseDuration(in); got != want {
			t.Fatalf("ParseDuration(%q) = %d, want %d", in, got, want)
		}
	}
}
