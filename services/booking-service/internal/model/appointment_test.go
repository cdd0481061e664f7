package model

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"pending", "Confirmed", " completed ", "CANCELLED"} {
		if _, err := ParseStatus(raw); err != nil {
			t.Fatalf("ParseStatus(%q): %v", raw, err)
		}
	}
	if _, err := ParseStatus("no-show"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestNewAppointmentDefaultsDuration(t *testing.T) {
	a := NewAppointment(time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), "09:00", 0)
	if a.DurationMinutes != 60 || a.Status != StatusPending {
		t.Fatalf("unexpected defaults: %+v", a)
	}
}

func TestBlockedUntilIncludesBuffer(t *testing.T) {
	a := NewAppointment(time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), "09:00", 60)
	want := time.Date(2026, 2, 16, 10, 15, 0, 0, time.UTC)
	if got := a.BlockedUntil(15); !got.Equal(want) {
		t.Fatalf("BlockedUntil = %v, want %v", got, want)
	}
	if got := a.StartsAt(); got.Hour() != 9 || got.Minute() != 0 {
		t.Fatalf("StartsAt = %v", got)
	}
}

func TestBookingsSkipsCancelled(t *testing.T) {
	day := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	active := NewAppointment(day, "09:00", 60)
	cancelled := NewAppointment(day, "10:00", 60)
	cancelled.Status = StatusCancelled

	got := Bookings([]Appointment{active, cancelled})
	if len(got) != 1 || got[0].Start != "09:00" {
		t.Fatalf("unexpected bookings %+v", got)
	}
}
