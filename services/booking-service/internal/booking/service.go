package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/podologia/agenda/libs/db"
	"github.com/podologia/agenda/services/booking-service/internal/availability"
	"github.com/podologia/agenda/services/booking-service/internal/catalog"
	"github.com/podologia/agenda/services/booking-service/internal/metrics"
	"github.com/podologia/agenda/services/booking-service/internal/model"
	"github.com/podologia/agenda/services/booking-service/internal/outbox"
	"github.com/podologia/agenda/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("booking-service/booking")

// Request is a booking as submitted by a client or entered by the practice.
type Request struct {
	Date            string
	Time            string
	DurationMinutes int
	ServiceID       string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Notes           string
	Price           string
	Source          model.Source
	IdempotencyKey  string
}

type Result struct {
	Appointment model.Appointment
	// Replayed is set when an earlier request with the same idempotency key
	// already created the appointment.
	Replayed bool
}

type SlotQuery struct {
	Date            string
	DurationMinutes int
	ServiceID       string
	HourlyOnly      bool
	ExcludeID       string
	HideStarted     bool
}

type SlotResult struct {
	Date            string                   `json:"date"`
	Schedule        availability.DaySchedule `json:"schedule"`
	DurationMinutes int                      `json:"duration_minutes"`
	Slots           []string                 `json:"slots"`
}

type Deps struct {
	Repo    *storage.BookingRepository
	Catalog *catalog.Repository
	Outbox  *outbox.Repository
	Locker  DateLocker
	Metrics *metrics.BookingMetrics
	Logger  *slog.Logger
	Now     func() time.Time
}

type Service struct {
	cfg       availability.Config
	validator Validator
	repo      *storage.BookingRepository
	catalog   *catalog.Repository
	outbox    *outbox.Repository
	locker    DateLocker
	metrics   *metrics.BookingMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(cfg availability.Config, deps Deps) *Service {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Outbox == nil {
		deps.Outbox = outbox.NewRepository()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		cfg:       cfg,
		validator: NewValidator(cfg),
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		outbox:    deps.Outbox,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

func (s *Service) Config() availability.Config {
	return s.cfg
}

// Schedule resolves the opening hours of a date.
func (s *Service) Schedule(date string) (availability.DaySchedule, error) {
	day, err := s.cfg.ParseDate(date)
	if err != nil {
		return availability.DaySchedule{}, invalid("date must be YYYY-MM-DD")
	}
	return s.cfg.DaySchedule(day), nil
}

// Slots lists the free start times of a date for the requested duration.
func (s *Service) Slots(ctx context.Context, q SlotQuery) (SlotResult, error) {
	day, err := s.cfg.ParseDate(q.Date)
	if err != nil {
		return SlotResult{}, invalid("date must be YYYY-MM-DD")
	}
	duration, _, err := s.resolveDuration(ctx, q.DurationMinutes, q.ServiceID, false)
	if err != nil {
		return SlotResult{}, err
	}

	res := SlotResult{
		Date:            availability.FormatDate(day),
		Schedule:        s.cfg.DaySchedule(day),
		DurationMinutes: duration,
		Slots:           []string{},
	}
	s.metrics.ObserveSlotQuery(res.Schedule.IsClosed)
	if res.Schedule.IsClosed {
		return res, nil
	}

	existing, err := s.repo.ListActiveOnDate(ctx, nil, day, q.ExcludeID)
	if err != nil {
		return SlotResult{}, fmt.Errorf("list appointments: %w", err)
	}
	slots := s.cfg.AvailableSlots(day, duration, q.HourlyOnly, model.Bookings(existing))
	if q.HideStarted {
		slots = availability.DropStarted(slots, day, s.now())
	}
	if slots != nil {
		res.Slots = slots
	}
	return res, nil
}

// Book validates req against the appointments already on its date and
// inserts it. The date lock and the exclusion constraint together keep two
// concurrent requests from taking the same time.
func (s *Service) Book(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("booking.date", req.Date),
		attribute.String("booking.time", req.Time),
		attribute.String("booking.source", string(req.Source)),
	))
	started := time.Now()
	defer func() {
		s.finish(span, "book", string(req.Source), started, err)
	}()

	appt, err := s.prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if req.IdempotencyKey != "" {
		prior, found, err := s.replay(ctx, req.IdempotencyKey)
		if err != nil {
			return Result{}, err
		}
		if found {
			return Result{Appointment: prior, Replayed: true}, nil
		}
	}
	if appt.Source == model.SourcePublic && !appt.StartsAt().After(s.now()) {
		return Result{}, reject(ReasonInPast, "não é possível agendar em um horário que já passou")
	}

	unlock, err := s.locker.Lock(ctx, availability.FormatDate(appt.Date))
	if err != nil {
		return Result{}, fmt.Errorf("lock date: %w", err)
	}
	defer unlock()

	replayed := false
	err = db.InTx(ctx, s.repo, func(tx pgx.Tx) error {
		if req.IdempotencyKey != "" {
			rec, exists, err := s.repo.LockIdempotencyKey(ctx, tx, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if exists && rec.AppointmentID != "" {
				prior, err := s.repo.GetForUpdate(ctx, tx, rec.AppointmentID)
				if err != nil {
					return fmt.Errorf("load replayed appointment: %w", err)
				}
				prior.Date = s.localDate(prior.Date)
				appt, replayed = prior, true
				return nil
			}
		}

		existing, err := s.repo.ListActiveOnDate(ctx, tx, appt.Date, "")
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		if err := s.validator.Check(appt.Date, appt.Time, appt.DurationMinutes, model.Bookings(existing)); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, &appt, s.cfg.HygienizationBufferMinutes); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, outbox.EventBooked, appt, nil); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			body, _ := json.Marshal(map[string]string{"appointment_id": appt.ID})
			if err := s.repo.FinalizeIdempotency(ctx, tx, req.IdempotencyKey, appt.ID, 201, body); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, s.mapStoreError(err)
	}
	if !replayed {
		s.logger.Info("appointment booked",
			"appointment_id", appt.ID,
			"date", availability.FormatDate(appt.Date),
			"time", appt.Time,
			"duration_minutes", appt.DurationMinutes,
			"source", appt.Source,
		)
	}
	return Result{Appointment: appt, Replayed: replayed}, nil
}

// Reschedule moves an appointment. Its own current slot never counts as a
// conflict. durationMinutes <= 0 keeps the stored duration.
func (s *Service) Reschedule(ctx context.Context, id, date, clock string, durationMinutes int) (appt model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking.Reschedule", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("booking.date", date),
		attribute.String("booking.time", clock),
	))
	started := time.Now()
	defer func() {
		s.finish(span, "reschedule", string(model.SourceAdmin), started, err)
	}()

	day, err := s.cfg.ParseDate(date)
	if err != nil {
		return model.Appointment{}, invalid("date must be YYYY-MM-DD")
	}
	if clock, err = availability.ParseClock(clock); err != nil {
		return model.Appointment{}, invalid("time must be HH:MM")
	}
	if durationMinutes > availability.MaxDurationMinutes {
		return model.Appointment{}, errDurationRange
	}

	unlock, err := s.locker.Lock(ctx, availability.FormatDate(day))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("lock date: %w", err)
	}
	defer unlock()

	err = db.InTx(ctx, s.repo, func(tx pgx.Tx) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == model.StatusCancelled {
			return invalid("cancelled appointments cannot be rescheduled")
		}
		previous := current

		appt = current
		appt.Date = day
		appt.Time = clock
		if durationMinutes > 0 {
			appt.DurationMinutes = durationMinutes
		}

		existing, err := s.repo.ListActiveOnDate(ctx, tx, day, appt.ID)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		if err := s.validator.Check(day, appt.Time, appt.DurationMinutes, model.Bookings(existing)); err != nil {
			return err
		}
		if err := s.repo.UpdateSchedule(ctx, tx, &appt, s.cfg.HygienizationBufferMinutes); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.EventRescheduled, appt, &previous)
	})
	if err != nil {
		return model.Appointment{}, s.mapStoreError(err)
	}
	s.logger.Info("appointment rescheduled", "appointment_id", appt.ID, "date", availability.FormatDate(appt.Date), "time", appt.Time)
	return appt, nil
}

// UpdateStatus changes the lifecycle status. Restoring a cancelled
// appointment re-runs the validator since its time may have been taken.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.Status) (appt model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking.UpdateStatus", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("appointment.status", string(status)),
	))
	started := time.Now()
	defer func() {
		s.finish(span, "status", string(model.SourceAdmin), started, err)
	}()

	if _, err := model.ParseStatus(string(status)); err != nil {
		return model.Appointment{}, invalid(err.Error())
	}

	// Peek at the date outside the transaction so the lock is taken first.
	peek, err := s.repo.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	unlock, err := s.locker.Lock(ctx, availability.FormatDate(peek.Date))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("lock date: %w", err)
	}
	defer unlock()

	err = db.InTx(ctx, s.repo, func(tx pgx.Tx) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		appt = current
		if current.Status == status {
			return nil
		}
		if !current.Status.Blocks() && status.Blocks() {
			existing, err := s.repo.ListActiveOnDate(ctx, tx, current.Date, current.ID)
			if err != nil {
				return fmt.Errorf("list appointments: %w", err)
			}
			if err := s.validator.Check(current.Date, current.Time, current.DurationMinutes, model.Bookings(existing)); err != nil {
				return err
			}
		}

		updatedAt, cancelledAt, err := s.repo.UpdateStatus(ctx, tx, id, status)
		if err != nil {
			return err
		}
		appt.Status = status
		appt.UpdatedAt = updatedAt
		appt.CancelledAt = cancelledAt

		eventType := outbox.EventStatusChanged
		if status == model.StatusCancelled {
			eventType = outbox.EventCancelled
		}
		return s.emit(ctx, tx, eventType, appt, &current)
	})
	if err != nil {
		return model.Appointment{}, s.mapStoreError(err)
	}
	return appt, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return s.UpdateStatus(ctx, id, model.StatusCancelled)
}

func (s *Service) List(ctx context.Context, f storage.RangeFilter) ([]model.Appointment, error) {
	appts, err := s.repo.ListRange(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range appts {
		appts[i].Date = s.localDate(appts[i].Date)
	}
	return appts, nil
}

func (s *Service) prepare(ctx context.Context, req Request) (model.Appointment, error) {
	day, err := s.cfg.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return model.Appointment{}, invalid("date must be YYYY-MM-DD")
	}
	clock, err := availability.ParseClock(req.Time)
	if err != nil {
		return model.Appointment{}, invalid("time must be HH:MM")
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return model.Appointment{}, invalid("customer_name required")
	}
	if req.Source == model.SourcePublic && strings.TrimSpace(req.CustomerPhone) == "" && strings.TrimSpace(req.CustomerEmail) == "" {
		return model.Appointment{}, invalid("customer_phone or customer_email required")
	}

	duration, svc, err := s.resolveDuration(ctx, req.DurationMinutes, req.ServiceID, req.Source != model.SourceAdmin)
	if err != nil {
		return model.Appointment{}, err
	}

	appt := model.NewAppointment(day, clock, duration)
	appt.CustomerName = name
	appt.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	appt.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	appt.Notes = strings.TrimSpace(req.Notes)
	appt.Price = strings.TrimSpace(req.Price)
	if req.Source != "" {
		appt.Source = req.Source
	}
	if appt.Source == model.SourceAdmin {
		appt.Status = model.StatusConfirmed
	}
	if svc != nil {
		appt.ServiceID = svc.ID
		appt.ServiceName = svc.Name
		if appt.Price == "" {
			appt.Price = svc.Price
		}
	}
	return appt, nil
}

// resolveDuration prefers an explicit duration, then the catalog service,
// then the default. With preferCatalog a known service's own duration wins,
// so public clients cannot shrink the time a service blocks.
func (s *Service) resolveDuration(ctx context.Context, minutes int, serviceID string, preferCatalog bool) (int, *catalog.Service, error) {
	if minutes < 0 || minutes > availability.MaxDurationMinutes {
		return 0, nil, errDurationRange
	}
	serviceID = strings.TrimSpace(serviceID)
	var svc *catalog.Service
	if serviceID != "" && s.catalog != nil {
		found, err := s.catalog.Get(ctx, serviceID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return 0, nil, invalid("unknown service_id")
			}
			return 0, nil, fmt.Errorf("load service: %w", err)
		}
		svc = &found
	}
	switch {
	case svc != nil && (preferCatalog || minutes == 0):
		return svc.Minutes(), svc, nil
	case minutes > 0:
		return minutes, svc, nil
	default:
		return availability.DefaultDurationMinutes, nil, nil
	}
}

// replay returns the appointment an earlier request with key created.
func (s *Service) replay(ctx context.Context, key string) (model.Appointment, bool, error) {
	rec, found, err := s.repo.FindIdempotency(ctx, key)
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("look up idempotency key: %w", err)
	}
	if !found || rec.AppointmentID == "" {
		return model.Appointment{}, false, nil
	}
	prior, err := s.repo.Get(ctx, rec.AppointmentID)
	if err != nil {
		return model.Appointment{}, false, fmt.Errorf("load replayed appointment: %w", err)
	}
	prior.Date = s.localDate(prior.Date)
	return prior, true, nil
}

func (s *Service) load(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	appt, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	appt.Date = s.localDate(appt.Date)
	return appt, nil
}

// localDate moves a DATE column value, which pgx returns at UTC midnight, to
// midnight in the practice's location.
func (s *Service) localDate(d time.Time) time.Time {
	day, err := s.cfg.ParseDate(availability.FormatDate(d))
	if err != nil {
		return d
	}
	return day
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, previous *model.Appointment) error {
	p := outbox.AppointmentPayload{
		AppointmentID:   appt.ID,
		Date:            availability.FormatDate(appt.Date),
		Time:            appt.Time,
		DurationMinutes: appt.DurationMinutes,
		ServiceID:       appt.ServiceID,
		ServiceName:     appt.ServiceName,
		CustomerName:    appt.CustomerName,
		CustomerPhone:   appt.CustomerPhone,
		CustomerEmail:   appt.CustomerEmail,
		Status:          string(appt.Status),
		Source:          string(appt.Source),
		OccurredAt:      s.now().UTC(),
	}
	if previous != nil {
		p.PreviousDate = availability.FormatDate(previous.Date)
		p.PreviousTime = previous.Time
		p.PreviousStatus = string(previous.Status)
	}
	evt, err := outbox.NewAppointmentEvent(eventType, p)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

func (s *Service) mapStoreError(err error) error {
	if storage.IsConflict(err) {
		return ErrSlotTaken
	}
	return err
}

func (s *Service) finish(span trace.Span, op, source string, started time.Time, err error) {
	defer span.End()
	s.metrics.ObserveLatency(op, time.Since(started).Seconds())

	outcome := "ok"
	var rej *RejectionError
	switch {
	case err == nil:
		if op == "book" {
			outcome = "booked"
		}
	case errors.As(err, &rej):
		outcome = string(rej.Reason)
	case errors.Is(err, ErrSlotTaken):
		outcome = "conflict"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound):
		outcome = "invalid"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("booking write failed", "op", op, "err", err)
	}
	span.SetAttributes(attribute.String("booking.outcome", outcome))
	if op == "book" {
		s.metrics.ObserveBooking(source, outcome)
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

var errDurationRange = invalid(fmt.Sprintf("duration_minutes must be between 1 and %d", availability.MaxDurationMinutes))
