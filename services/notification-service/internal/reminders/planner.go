package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	eventCancelled = "booking.appointment.cancelled.v1"
	timeLayout     = "2006-01-02 15:04"
)

type appointmentRef struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

// Planner turns appointment events into reminder jobs.
type Planner struct {
	repo *Repository
	db   Execer
	lead time.Duration
	loc  *time.Location
	now  func() time.Time
}

func NewPlanner(repo *Repository, db Execer, lead time.Duration, loc *time.Location) *Planner {
	if loc == nil {
		loc = time.Local
	}
	return &Planner{repo: repo, db: db, lead: lead, loc: loc, now: time.Now}
}

// Plan schedules a reminder lead before the appointment starts, moves it on
// reschedule and drops it once the appointment is cancelled or completed.
// Appointments starting within the lead get no reminder.
func (p *Planner) Plan(ctx context.Context, eventType string, body []byte) error {
	var ref appointmentRef
	if err := json.Unmarshal(body, &ref); err != nil || ref.AppointmentID == "" {
		return nil
	}
	if eventType == eventCancelled || ref.Status == "cancelled" || ref.Status == "completed" {
		return p.repo.Cancel(ctx, p.db, ref.AppointmentID)
	}

	startsAt, err := time.ParseInLocation(timeLayout, ref.Date+" "+ref.Time, p.loc)
	if err != nil {
		return fmt.Errorf("appointment %s: %w", ref.AppointmentID, err)
	}
	remindAt := startsAt.Add(-p.lead)
	if !remindAt.After(p.now()) {
		return p.repo.Cancel(ctx, p.db, ref.AppointmentID)
	}
	return p.repo.Upsert(ctx, p.db, ref.AppointmentID, remindAt, body)
}
