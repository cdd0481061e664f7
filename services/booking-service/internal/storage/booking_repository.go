package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/podologia/agenda/services/booking-service/internal/availability"
	"github.com/podologia/agenda/services/booking-service/internal/model"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Querier that can also open transactions.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type BookingRepository struct {
	db DB
}

type IdempotencyRecord struct {
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// RangeFilter narrows ListRange. Zero values mean no bound.
type RangeFilter struct {
	From   time.Time
	To     time.Time
	Status model.Status
	Limit  int
}

func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

const appointmentColumns = `
	a.id::text, a.appointment_date, a.start_time, a.duration_minutes,
	COALESCE(a.service_id::text, ''), COALESCE(s.name, ''),
	a.customer_name, a.customer_phone, a.customer_email, a.notes,
	COALESCE(a.price::text, ''), a.status, a.source, a.cancelled_at, a.created_at, a.updated_at`

// ListActiveOnDate returns the appointments that hold time on date, leaving
// out cancelled ones and excludeID when it is set.
func (r *BookingRepository) ListActiveOnDate(ctx context.Context, q Querier, date time.Time, excludeID string) ([]model.Appointment, error) {
	if q == nil {
		q = r.db
	}
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.appointment_date = $1
			AND a.status <> 'cancelled'
			AND ($2 = '' OR a.id::text <> $2)
		ORDER BY a.start_time ASC
	`, availability.FormatDate(date), excludeID)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// Create inserts appt and fills its ID. bufferMinutes sizes blocked_until,
// which the exclusion constraint compares.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment, bufferMinutes int) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, appointment_date, start_time, duration_minutes, starts_at, blocked_until,
			 service_id, customer_name, customer_phone, customer_email, notes, price, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13, $14)
		RETURNING created_at, updated_at
	`, appt.ID, availability.FormatDate(appt.Date), appt.Time, appt.DurationMinutes,
		appt.StartsAt(), appt.BlockedUntil(bufferMinutes),
		nullable(appt.ServiceID), appt.CustomerName, appt.CustomerPhone, appt.CustomerEmail, appt.Notes,
		nullable(appt.Price), string(appt.Status), string(appt.Source),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`, id)
	return scanAppointment(row)
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

// UpdateSchedule moves an appointment to a new date, time and duration.
func (r *BookingRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, appt *model.Appointment, bufferMinutes int) error {
	return tx.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
			start_time = $3,
			duration_minutes = $4,
			starts_at = $5,
			blocked_until = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, appt.ID, availability.FormatDate(appt.Date), appt.Time, appt.DurationMinutes,
		appt.StartsAt(), appt.BlockedUntil(bufferMinutes),
	).Scan(&appt.UpdatedAt)
}

// UpdateStatus sets the status and stamps cancelled_at when cancelling.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status) (time.Time, *time.Time, error) {
	var updatedAt time.Time
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN COALESCE(cancelled_at, now()) ELSE NULL END,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at, cancelled_at
	`, id, string(status)).Scan(&updatedAt, &cancelledAt)
	return updatedAt, cancelledAt, err
}

func (r *BookingRepository) ListRange(ctx context.Context, f RangeFilter) ([]model.Appointment, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 200
	}
	var from, to any
	if !f.From.IsZero() {
		from = availability.FormatDate(f.From)
	}
	if !f.To.IsZero() {
		to = availability.FormatDate(f.To)
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE ($1::date IS NULL OR a.appointment_date >= $1::date)
			AND ($2::date IS NULL OR a.appointment_date <= $2::date)
			AND ($3 = '' OR a.status = $3)
		ORDER BY a.appointment_date ASC, a.start_time ASC
		LIMIT $4
	`, from, to, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
	rec, err := selectIdempotency(ctx, tx, key, "FOR UPDATE")
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = selectIdempotency(ctx, tx, key, "FOR UPDATE")
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

// FindIdempotency reads a key without locking it. found is false when the
// key was never used.
func (r *BookingRepository) FindIdempotency(ctx context.Context, key string) (rec IdempotencyRecord, found bool, err error) {
	rec, err = selectIdempotency(ctx, r.db, key, "")
	if errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, nullable(appointmentID), statusCode, response)
	return err
}

// IsConflict matches the overlap exclusion constraint and unique violations.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func selectIdempotency(ctx context.Context, q Querier, key, lock string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := q.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		`+lock, key).Scan(
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status, source string
	err := row.Scan(
		&appt.ID,
		&appt.Date,
		&appt.Time,
		&appt.DurationMinutes,
		&appt.ServiceID,
		&appt.ServiceName,
		&appt.CustomerName,
		&appt.CustomerPhone,
		&appt.CustomerEmail,
		&appt.Notes,
		&appt.Price,
		&status,
		&source,
		&appt.CancelledAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.Source = model.Source(source)
	return appt, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
