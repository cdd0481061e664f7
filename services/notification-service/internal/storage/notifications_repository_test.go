package storage

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("appt-1", "booking.appointment.booked.v1", "email", "ana@example.com",
			[]byte(`{"subject":"Olá"}`), StatusSent, "smtp", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Insert(context.Background(), Notification{
		AppointmentID: "appt-1",
		EventType:     "booking.appointment.booked.v1",
		Channel:       "email",
		Recipient:     "ana@example.com",
		Payload:       map[string]any{"subject": "Olá"},
		Status:        StatusSent,
		ProviderID:    "smtp",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDefaultsPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("appt-1", "e", "whatsapp", "5511", []byte(`{}`), StatusFailed, "", "boom").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewRepository(mock).Insert(context.Background(), Notification{
		AppointmentID: "appt-1", EventType: "e", Channel: "whatsapp", Recipient: "5511",
		Status: StatusFailed, ErrorReason: "boom",
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "appointment_id", "event_type", "channel", "recipient", "payload", "status", "provider_id", "error_reason", "created_at"}).
		AddRow(int64(1), "appt-1", "booking.appointment.booked.v1", "email", "ana@example.com", []byte(`{"audience":"client"}`), StatusSent, "smtp", "", created).
		AddRow(int64(2), "appt-1", "booking.appointment.booked.v1", "whatsapp", "5511", []byte(`{}`), StatusFailed, "", "timeout", created)
	mock.ExpectQuery("FROM notifications").WithArgs("appt-1").WillReturnRows(rows)

	got, err := NewRepository(mock).ListForAppointment(context.Background(), "appt-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "client", got[0].Payload["audience"])
	assert.Equal(t, "timeout", got[1].ErrorReason)
	require.NoError(t, mock.ExpectationsWereMet())
}
