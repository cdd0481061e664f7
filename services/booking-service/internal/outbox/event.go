package outbox

import (
	"encoding/json"
	"time"
)

// Topic names. The Kafka topic equals the event type.
const (
	EventBooked        = "booking.appointment.booked.v1"
	EventRescheduled   = "booking.appointment.rescheduled.v1"
	EventStatusChanged = "booking.appointment.status_changed.v1"
	EventCancelled     = "booking.appointment.cancelled.v1"
)

// Topics lists every topic this service publishes.
var Topics = []string{EventBooked, EventRescheduled, EventStatusChanged, EventCancelled}

// Event is the envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentPayload is the body of every appointment event.
type AppointmentPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	ServiceID       string    `json:"service_id,omitempty"`
	ServiceName     string    `json:"service_name,omitempty"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	PreviousDate    string    `json:"previous_date,omitempty"`
	PreviousTime    string    `json:"previous_time,omitempty"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewAppointmentEvent(eventType string, p AppointmentPayload) (Event, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   p.AppointmentID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
