package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/podologia/agenda/services/booking-service/internal/availability"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
}

// Blocks reports whether an appointment in this status holds its time.
func (s Status) Blocks() bool {
	return s != StatusCancelled
}

type Source string

const (
	SourcePublic Source = "public"
	SourceAdmin  Source = "admin"
)

type Appointment struct {
	ID              string
	Date            time.Time
	Time            string
	DurationMinutes int
	ServiceID       string
	ServiceName     string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Notes           string
	Price           string
	Status          Status
	Source          Source
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAppointment fills the required-with-default fields.
func NewAppointment(date time.Time, clock string, durationMinutes int) Appointment {
	if durationMinutes <= 0 {
		durationMinutes = availability.DefaultDurationMinutes
	}
	return Appointment{
		Date:            date,
		Time:            clock,
		DurationMinutes: durationMinutes,
		Status:          StatusPending,
		Source:          SourcePublic,
	}
}

// StartsAt is the wall-clock start of the appointment on its date.
func (a Appointment) StartsAt() time.Time {
	return wallClock(a.Date, a.Time)
}

// BlockedUntil is the end of the appointment's footprint including the
// hygienization buffer.
func (a Appointment) BlockedUntil(bufferMinutes int) time.Time {
	return a.StartsAt().Add(time.Duration(a.DurationMinutes+bufferMinutes) * time.Minute)
}

// Booking is the engine view of the appointment.
func (a Appointment) Booking() availability.Booking {
	return availability.Booking{ID: a.ID, Start: a.Time, DurationMinutes: a.DurationMinutes}
}

func Bookings(appts []Appointment) []availability.Booking {
	out := make([]availability.Booking, 0, len(appts))
	for _, a := range appts {
		if !a.Status.Blocks() {
			continue
		}
		out = append(out, a.Booking())
	}
	return out
}

func wallClock(date time.Time, clock string) time.Time {
	m := availability.TimeToMinutes(clock)
	y, mo, d := date.Date()
	return time.Date(y, mo, d, m/60, m%60, 0, 0, date.Location())
}
