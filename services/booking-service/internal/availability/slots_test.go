package availability

import (
	"math"
	"testing"
	"time"
)

func mustDate(t *testing.T, cfg Config, s string) time.Time {
	t.Helper()
	day, err := cfg.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return day
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	cfg.HygienizationBufferMinutes = 15
	return cfg
}

func TestGenerateTimeSlots_HourlyWeekday(t *testing.T) {
	cfg := testConfig()
	slots := cfg.GenerateTimeSlots(mustDate(t, cfg, "2026-02-16"), true)
	if len(slots) != 10 {
		t.Fatalf("expected 10 slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != "08:30" || slots[len(slots)-1] != "17:30" {
		t.Fatalf("unexpected boundary slots: %v", slots)
	}
}

func TestGenerateTimeSlots_TuesdayEndsAtOverriddenLastStart(t *testing.T) {
	cfg := testConfig()
	slots := cfg.GenerateTimeSlots(mustDate(t, cfg, "2026-02-17"), true)
	if got := slots[len(slots)-1]; got != "15:30" {
		t.Fatalf("expected last slot 15:30, got %s (%v)", got, slots)
	}
}

func TestGenerateTimeSlots_SaturdayAppendsLastStart(t *testing.T) {
	cfg := testConfig()
	slots := cfg.GenerateTimeSlots(mustDate(t, cfg, "2026-02-14"), true)
	want := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00", "17:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestGenerateTimeSlots_Properties(t *testing.T) {
	cfg := testConfig()
	start := mustDate(t, cfg, "2026-01-01")
	for i := 0; i < 60; i++ {
		day := start.AddDate(0, 0, i)
		s := cfg.DaySchedule(day)
		for _, hourly := range []bool{true, false} {
			slots := cfg.GenerateTimeSlots(day, hourly)
			lastCount := 0
			for j, slot := range slots {
				m := TimeToMinutes(slot)
				if m < TimeToMinutes(s.Opening) || m > TimeToMinutes(s.LastStart) {
					t.Fatalf("%s: slot %s outside [%s, %s]", FormatDate(day), slot, s.Opening, s.LastStart)
				}
				if j > 0 && m <= TimeToMinutes(slots[j-1]) {
					t.Fatalf("%s: slots not strictly increasing: %v", FormatDate(day), slots)
				}
				if slot == s.LastStart {
					lastCount++
				}
			}
			if hourly && lastCount != 1 {
				t.Fatalf("%s: expected last start exactly once, got %d in %v", FormatDate(day), lastCount, slots)
			}
		}
	}
}

func TestGenerateTimeSlots_FinerInterval(t *testing.T) {
	cfg := testConfig()
	cfg.SlotIntervalMinutes = 30
	slots := cfg.GenerateTimeSlots(mustDate(t, cfg, "2026-02-16"), false)
	if len(slots) != 19 {
		t.Fatalf("expected 19 half-hour slots, got %d", len(slots))
	}
	if slots[1] != "09:00" {
		t.Fatalf("expected second slot 09:00, got %s", slots[1])
	}
}

func TestIsSlotAvailable_BufferAfterExistingAppointment(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	booked := []Booking{{ID: "a", Start: "09:00", DurationMinutes: 60}}

	if !cfg.IsSlotAvailable("10:15", 60, booked, day) {
		t.Fatal("expected 10:15 to be free once the buffer has elapsed")
	}
	if cfg.IsSlotAvailable("10:10", 60, booked, day) {
		t.Fatal("expected 10:10 to collide with the buffer")
	}
}

func TestIsSlotAvailable_BufferSymmetry(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	cases := []struct {
		startA    string
		durationA int
		durationB int
	}{
		{"08:30", 60, 30},
		{"09:00", 80, 60},
		{"13:00", 20, 120},
	}
	for _, tc := range cases {
		a := []Booking{{Start: tc.startA, DurationMinutes: tc.durationA}}
		touch := TimeToMinutes(tc.startA) + tc.durationA + cfg.HygienizationBufferMinutes
		if !cfg.IsSlotAvailable(MinutesToTime(touch), tc.durationB, a, day) {
			t.Fatalf("A=%s/%d: touching start %s should be free", tc.startA, tc.durationA, MinutesToTime(touch))
		}
		if cfg.IsSlotAvailable(MinutesToTime(touch-1), tc.durationB, a, day) {
			t.Fatalf("A=%s/%d: start %s overlaps by one minute", tc.startA, tc.durationA, MinutesToTime(touch-1))
		}
	}
}

func TestIsSlotAvailable_CandidateBufferBlocksLaterBooking(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	booked := []Booking{{Start: "11:00", DurationMinutes: 60}}

	// 09:45 + 60 + 15 ends exactly at 11:00.
	if !cfg.IsSlotAvailable("09:45", 60, booked, day) {
		t.Fatal("expected 09:45 to end right at the next booking")
	}
	if cfg.IsSlotAvailable("09:50", 60, booked, day) {
		t.Fatal("expected 09:50 buffer to run into the 11:00 booking")
	}
}

func TestIsSlotAvailable_Boundaries(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")

	if cfg.IsSlotAvailable("17:45", 30, nil, day) {
		t.Fatal("expected start after last start to be rejected")
	}
	// 17:30 + 60 + 15 = 18:45 > 18:30.
	if cfg.IsSlotAvailable("17:30", 60, nil, day) {
		t.Fatal("expected service running past closing to be rejected")
	}
	// 17:30 + 45 + 15 = 18:30.
	if !cfg.IsSlotAvailable("17:30", 45, nil, day) {
		t.Fatal("expected service ending exactly at closing to be accepted")
	}
}

func TestIsSlotAvailable_MissingDurationDefaults(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	booked := []Booking{{Start: "09:00"}}

	if cfg.IsSlotAvailable("10:10", 30, booked, day) {
		t.Fatal("expected zero duration to default to 60 minutes")
	}
	if !cfg.IsSlotAvailable("10:15", 30, booked, day) {
		t.Fatal("expected 10:15 to be free after the defaulted booking")
	}
}

func TestAvailableSlots_ClosedDayIsEmpty(t *testing.T) {
	cfg := testConfig()
	if slots := cfg.AvailableSlots(mustDate(t, cfg, "2026-02-15"), 60, true, nil); len(slots) != 0 {
		t.Fatalf("expected no slots on Sunday, got %v", slots)
	}
}

func TestAvailableSlots_FiltersBooked(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	booked := []Booking{{Start: "10:30", DurationMinutes: 60}}

	slots := cfg.AvailableSlots(day, 60, true, booked)
	for _, s := range slots {
		if s == "09:30" || s == "10:30" || s == "11:30" {
			t.Fatalf("slot %s should be blocked by the 10:30 booking: %v", s, slots)
		}
	}
	// 17:30 + 60 + 15 passes closing.
	if slots[len(slots)-1] != "16:30" {
		t.Fatalf("expected last free slot 16:30, got %v", slots)
	}
}

func TestDropStarted(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	slots := []string{"08:30", "09:30", "10:30"}

	now := time.Date(2026, 2, 16, 9, 30, 0, 0, time.UTC)
	got := DropStarted(slots, day, now)
	if len(got) != 1 || got[0] != "10:30" {
		t.Fatalf("expected only 10:30, got %v", got)
	}
	if got := DropStarted(slots, day, now.AddDate(0, 0, -1)); len(got) != 3 {
		t.Fatalf("expected future date untouched, got %v", got)
	}
	if got := DropStarted(slots, day, now.AddDate(0, 0, 1)); len(got) != 0 {
		t.Fatalf("expected past date to have no slots, got %v", got)
	}
}

func TestAvailableSlots_HugeDurationHasNoSlots(t *testing.T) {
	cfg := testConfig()
	day := mustDate(t, cfg, "2026-02-16")
	booked := []Booking{{Start: "09:00", DurationMinutes: 60}}

	if slots := cfg.AvailableSlots(day, math.MaxInt-5, true, booked); len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
	if cfg.IsSlotAvailable("09:00", math.MaxInt, booked, day) {
		t.Fatal("expected an overflowing duration to be rejected")
	}
	if cfg.IsSlotAvailable("08:30", MaxDurationMinutes+1, nil, day) {
		t.Fatal("expected a duration longer than a day to be rejected")
	}
}
