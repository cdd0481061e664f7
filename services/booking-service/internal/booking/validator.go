package booking

import (
	"fmt"
	"time"

	"github.com/podologia/agenda/services/booking-service/internal/availability"
)

// Validator re-checks a requested start against the appointments that hold
// the date at write time.
type Validator struct {
	cfg availability.Config
}

func NewValidator(cfg availability.Config) Validator {
	return Validator{cfg: cfg}
}

// Check returns the first failing rule as a *RejectionError, or nil. The
// order is closed day, last start, closing, overlap. existing must already
// exclude cancelled appointments and the appointment being edited.
func (v Validator) Check(day time.Time, start string, durationMinutes int, existing []availability.Booking) error {
	s := v.cfg.DaySchedule(day)
	if s.IsClosed {
		return reject(ReasonClosedDay, "a clínica não atende neste dia")
	}

	if durationMinutes <= 0 {
		durationMinutes = availability.DefaultDurationMinutes
	}
	// Anything longer than a day runs past closing; clamping keeps the
	// interval arithmetic from overflowing.
	candidate := v.cfg.BlockedInterval(start, min(durationMinutes, availability.MaxDurationMinutes+1))
	if s.StartsTooLate(candidate.Start) {
		return reject(ReasonAfterLastStart, fmt.Sprintf("o último horário de início neste dia é %s", s.LastStart))
	}
	if s.EndsAfterClosing(candidate.End) {
		return reject(ReasonPastClosing, fmt.Sprintf("este serviço ultrapassa o horário de fechamento (%s)", s.Closing))
	}
	if v.cfg.Conflicts(candidate, existing) {
		return reject(ReasonConflict, "horário ocupado")
	}
	return nil
}
