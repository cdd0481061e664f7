package booking

import "errors"

var (
	// ErrSlotTaken is returned when the store rejects a write because another
	// booking claimed the time first.
	ErrSlotTaken      = errors.New("slot no longer available, please retry")
	ErrNotFound       = errors.New("appointment not found")
	ErrInvalidRequest = errors.New("invalid booking request")
)

type Reason string

const (
	ReasonClosedDay      Reason = "closed_day"
	ReasonAfterLastStart Reason = "after_last_start"
	ReasonPastClosing    Reason = "past_closing"
	ReasonConflict       Reason = "conflict"
	ReasonInPast         Reason = "in_past"
)

// RejectionError is a user-facing validation failure.
type RejectionError struct {
	Reason  Reason
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func reject(reason Reason, msg string) error {
	return &RejectionError{Reason: reason, Message: msg}
}
