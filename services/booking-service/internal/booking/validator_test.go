package booking

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/podologia/agenda/services/booking-service/internal/availability"
)

func testConfig() availability.Config {
	cfg := availability.DefaultConfig()
	cfg.Location = time.UTC
	cfg.HygienizationBufferMinutes = 15
	return cfg
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := testConfig().ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected *RejectionError, got %v", err)
	}
	return rej.Reason
}

func TestValidatorOrder(t *testing.T) {
	v := NewValidator(testConfig())
	monday := day(t, "2026-02-16")
	// 17:00 collides with this booking too, so the last-start rule must win.
	booked := []availability.Booking{{Start: "17:00", DurationMinutes: 60}}

	err := v.Check(monday, "17:45", 30, booked)
	if got := reasonOf(t, err); got != ReasonAfterLastStart {
		t.Fatalf("expected after_last_start, got %s", got)
	}
	if !strings.Contains(err.Error(), "17:30") {
		t.Fatalf("expected message to name the last start, got %q", err.Error())
	}

	if got := reasonOf(t, v.Check(monday, "17:30", 60, nil)); got != ReasonPastClosing {
		t.Fatalf("expected past_closing, got %s", got)
	}
	if got := reasonOf(t, v.Check(monday, "17:30", 60, booked)); got != ReasonPastClosing {
		t.Fatalf("expected closing to be checked before overlap, got %s", got)
	}
	if got := reasonOf(t, v.Check(monday, "16:00", 60, booked)); got != ReasonConflict {
		t.Fatalf("expected conflict, got %s", got)
	}
}

func TestValidatorClosedDay(t *testing.T) {
	v := NewValidator(testConfig())
	if got := reasonOf(t, v.Check(day(t, "2026-02-15"), "09:00", 60, nil)); got != ReasonClosedDay {
		t.Fatalf("expected closed_day on Sunday, got %s", got)
	}
	if got := reasonOf(t, v.Check(day(t, "2026-02-19"), "09:00", 60, nil)); got != ReasonClosedDay {
		t.Fatalf("expected closed_day on Thursday, got %s", got)
	}
}

func TestValidatorTuesdayLastStart(t *testing.T) {
	v := NewValidator(testConfig())
	tuesday := day(t, "2026-02-17")
	if err := v.Check(tuesday, "15:30", 60, nil); err != nil {
		t.Fatalf("expected 15:30 to be accepted on Tuesday, got %v", err)
	}
	if got := reasonOf(t, v.Check(tuesday, "16:00", 30, nil)); got != ReasonAfterLastStart {
		t.Fatalf("expected after_last_start, got %s", got)
	}
}

func TestValidatorConflictMessageIsGeneric(t *testing.T) {
	v := NewValidator(testConfig())
	booked := []availability.Booking{{ID: "secret-id", Start: "09:00", DurationMinutes: 60}}
	err := v.Check(day(t, "2026-02-16"), "10:10", 60, booked)
	if reasonOf(t, err) != ReasonConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "horário ocupado" || strings.Contains(err.Error(), "secret-id") {
		t.Fatalf("conflict message must not identify the other appointment: %q", err.Error())
	}
	if err := v.Check(day(t, "2026-02-16"), "10:15", 60, booked); err != nil {
		t.Fatalf("expected 10:15 to be accepted, got %v", err)
	}
}

func TestValidatorSelfExclusion(t *testing.T) {
	v := NewValidator(testConfig())
	// An appointment checked against a set that no longer contains itself
	// never conflicts with its own slot.
	if err := v.Check(day(t, "2026-02-16"), "09:00", 60, nil); err != nil {
		t.Fatalf("expected unmodified slot to be accepted, got %v", err)
	}
}

func TestValidatorHugeDurationRunsPastClosing(t *testing.T) {
	v := NewValidator(testConfig())
	monday := day(t, "2026-02-16")
	existing := []availability.Booking{{Start: "09:00", DurationMinutes: 60}}

	for _, d := range []int{availability.MaxDurationMinutes + 1, math.MaxInt - 5, math.MaxInt} {
		if got := reasonOf(t, v.Check(monday, "09:00", d, existing)); got != ReasonPastClosing {
			t.Fatalf("duration %d: expected past_closing, got %s", d, got)
		}
	}
}
