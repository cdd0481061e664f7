package reminders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanner(t *testing.T, mock pgxmock.PgxPoolIface) *Planner {
	t.Helper()
	p := NewPlanner(NewRepository(), mock, 24*time.Hour, time.UTC)
	p.now = func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPlanSchedulesReminderBeforeStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	body := []byte(`{"appointment_id":"appt-1","date":"2026-02-16","time":"09:00","status":"pending"}`)
	mock.ExpectExec("INSERT INTO reminder_jobs").
		WithArgs("appt-1", time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC), body, "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, newPlanner(t, mock).Plan(context.Background(), "booking.appointment.booked.v1", body))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanCancelsWhenTooCloseOrCancelled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	p := newPlanner(t, mock)
	ctx := context.Background()

	// Starts in less than 24h.
	mock.ExpectExec("UPDATE reminder_jobs").WithArgs("appt-2").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.NoError(t, p.Plan(ctx, "booking.appointment.rescheduled.v1",
		[]byte(`{"appointment_id":"appt-2","date":"2026-02-15","time":"08:30","status":"confirmed"}`)))

	mock.ExpectExec("UPDATE reminder_jobs").WithArgs("appt-3").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, p.Plan(ctx, "booking.appointment.cancelled.v1",
		[]byte(`{"appointment_id":"appt-3","date":"2026-03-02","time":"10:00","status":"cancelled"}`)))

	mock.ExpectExec("UPDATE reminder_jobs").WithArgs("appt-4").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, p.Plan(ctx, "booking.appointment.status_changed.v1",
		[]byte(`{"appointment_id":"appt-4","date":"2026-03-02","time":"10:00","status":"completed"}`)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanIgnoresGarbage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	p := newPlanner(t, mock)

	require.NoError(t, p.Plan(context.Background(), "booking.appointment.booked.v1", []byte("{")))
	require.Error(t, p.Plan(context.Background(), "booking.appointment.booked.v1",
		[]byte(`{"appointment_id":"appt-5","date":"16/02/2026","time":"09:00","status":"pending"}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

var jobCols = []string{"id", "appointment_id", "remind_at", "payload", "attempts", "max_attempts", "traceparent", "tracestate"}

func newWorker(mock pgxmock.PgxPoolIface, deliver Deliver) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(mock, NewRepository(), deliver, logger, WorkerConfig{BatchSize: 10})
	w.now = func() time.Time { return time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC) }
	return w
}

func TestProcessBatchMarksSentAndFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	remindAt := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reminder_jobs").
		WithArgs(pgxmock.AnyArg(), 10).
		WillReturnRows(pgxmock.NewRows(jobCols).
			AddRow(int64(1), "ok", remindAt, []byte(`{}`), 0, 5, "", "").
			AddRow(int64(2), "bad", remindAt, []byte(`{}`), 4, 5, "", ""))
	mock.ExpectExec("UPDATE reminder_jobs").
		WithArgs(int64(2), 5, "failed", pgxmock.AnyArg(), "provider down").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE reminder_jobs").
		WithArgs([]int64{1}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	var delivered []string
	w := newWorker(mock, func(_ context.Context, job Job) error {
		delivered = append(delivered, job.AppointmentID)
		if job.AppointmentID == "bad" {
			return errors.New("provider down")
		}
		return nil
	})

	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ok", "bad"}, delivered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBatchRetriesBelowMaxAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reminder_jobs").
		WithArgs(pgxmock.AnyArg(), 10).
		WillReturnRows(pgxmock.NewRows(jobCols).
			AddRow(int64(3), "later", time.Now(), []byte(`{}`), 0, 5, "", ""))
	mock.ExpectExec("UPDATE reminder_jobs").
		WithArgs(int64(3), 1, "pending", time.Date(2026, 2, 15, 9, 5, 0, 0, time.UTC), "timeout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	w := newWorker(mock, func(context.Context, Job) error { return errors.New("timeout") })
	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBatchEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reminder_jobs").WithArgs(pgxmock.AnyArg(), 10).WillReturnRows(pgxmock.NewRows(jobCols))
	mock.ExpectCommit()

	n, err := newWorker(mock, nil).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
