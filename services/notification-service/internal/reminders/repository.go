package reminders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	otelx "github.com/podologia/agenda/libs/otel"
)

type Job struct {
	ID            int64
	AppointmentID string
	RemindAt      time.Time
	Payload       []byte
	Attempts      int
	MaxAttempts   int
	Trace         otelx.Carrier
}

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Upsert keeps one pending reminder per appointment. A reschedule moves it
// and resets its attempts.
func (r *Repository) Upsert(ctx context.Context, db Execer, appointmentID string, remindAt time.Time, payload []byte) error {
	trace := otelx.CarrierFromContext(ctx)
	_, err := db.Exec(ctx, `
		INSERT INTO reminder_jobs (appointment_id, remind_at, payload, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $2, $4, $5)
		ON CONFLICT (appointment_id) DO UPDATE
		SET remind_at = EXCLUDED.remind_at,
		    payload = EXCLUDED.payload,
		    next_run_at = EXCLUDED.next_run_at,
		    status = 'pending',
		    attempts = 0,
		    last_error = '',
		    traceparent = EXCLUDED.traceparent,
		    tracestate = EXCLUDED.tracestate,
		    updated_at = now()
	`, appointmentID, remindAt, payload, trace.Traceparent, trace.Tracestate)
	return err
}

func (r *Repository) Cancel(ctx context.Context, db Execer, appointmentID string) error {
	_, err := db.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, appointment_id, remind_at, payload, attempts, max_attempts, traceparent, tracestate
		FROM reminder_jobs
		WHERE status = 'pending' AND next_run_at <= $1
		ORDER BY next_run_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.AppointmentID, &j.RemindAt, &j.Payload, &j.Attempts, &j.MaxAttempts, &j.Trace.Traceparent, &j.Trace.Tracestate); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkSent(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'sent', updated_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// MarkFailed either reschedules the job at nextRunAt or, once attempts
// reaches the job's maximum, parks it as failed.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, job Job, attempts int, nextRunAt time.Time, lastError string) error {
	status := "pending"
	if attempts >= job.MaxAttempts {
		status = "failed"
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, job.ID, attempts, status, nextRunAt, lastError)
	return err
}
