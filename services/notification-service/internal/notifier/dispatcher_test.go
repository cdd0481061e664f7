package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podologia/agenda/services/notification-service/internal/email"
	"github.com/podologia/agenda/services/notification-service/internal/storage"
	"github.com/podologia/agenda/services/notification-service/internal/templates"
)

type memStore struct {
	rows []storage.Notification
	err  error
}

func (m *memStore) Insert(_ context.Context, n storage.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, n)
	return nil
}

type fakeWhatsApp struct {
	to  []string
	err error
}

func (f *fakeWhatsApp) ProviderID() string { return "whatsapp-test" }

func (f *fakeWhatsApp) Send(_ context.Context, to, _ string) error {
	f.to = append(f.to, to)
	return f.err
}

func newDispatcher(t *testing.T, cfg Config, wa *fakeWhatsApp, store Store, reg prometheus.Registerer) (*Dispatcher, *email.StubSender) {
	t.Helper()
	r, err := templates.New()
	require.NoError(t, err)
	mail := email.NewStubSender(nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(cfg, mail, wa, r, store, NewMetrics(reg), logger), mail
}

func bookedBody(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(AppointmentEvent{
		AppointmentID:   "appt-1",
		Date:            "2026-02-16",
		Time:            "09:00",
		DurationMinutes: 60,
		ServiceName:     "Podoprofilaxia",
		CustomerName:    "Ana",
		CustomerPhone:   "+55 11 98888-7777",
		CustomerEmail:   "ana@example.com",
		Status:          "pending",
		Source:          "public",
	})
	require.NoError(t, err)
	return b
}

func TestHandleFansOutToClientAndPractice(t *testing.T) {
	store := &memStore{}
	wa := &fakeWhatsApp{}
	reg := prometheus.NewRegistry()
	d, mail := newDispatcher(t, Config{PracticeEmail: "agenda@clinica.com", PracticeWhatsApp: "5511900000000"}, wa, store, reg)

	require.NoError(t, d.Handle(context.Background(), "booking.appointment.booked.v1", bookedBody(t)))

	require.Len(t, store.rows, 4)
	sent := mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Equal(t, "agenda@clinica.com", sent[1].To)
	assert.Equal(t, []string{"+55 11 98888-7777", "5511900000000"}, wa.to)

	for _, n := range store.rows {
		assert.Equal(t, storage.StatusSent, n.Status)
		assert.Equal(t, "appt-1", n.AppointmentID)
	}
	assert.Equal(t, "client", store.rows[0].Payload["audience"])
	assert.Equal(t, "practice", store.rows[3].Payload["audience"])

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Len(t, families[0].GetMetric(), 4)
}

func TestHandleRecordsProviderFailure(t *testing.T) {
	store := &memStore{}
	wa := &fakeWhatsApp{err: errors.New("status 401")}
	d, _ := newDispatcher(t, Config{}, wa, store, nil)

	require.NoError(t, d.Handle(context.Background(), "booking.appointment.booked.v1", bookedBody(t)))
	require.Len(t, store.rows, 2)
	assert.Equal(t, storage.StatusSent, store.rows[0].Status)
	assert.Equal(t, storage.StatusFailed, store.rows[1].Status)
	assert.Equal(t, "status 401", store.rows[1].ErrorReason)
	assert.Equal(t, "whatsapp-test", store.rows[1].ProviderID)
}

func TestHandleSimulatedFailure(t *testing.T) {
	store := &memStore{}
	d, mail := newDispatcher(t, Config{FailSuffix: "@example.com"}, &fakeWhatsApp{}, store, nil)

	require.NoError(t, d.Handle(context.Background(), "booking.appointment.booked.v1", bookedBody(t)))
	assert.Empty(t, mail.Sent())
	assert.Equal(t, "simulated failure", store.rows[0].ErrorReason)
}

func TestHandleSkipsBadPayloadsAndUnknownEvents(t *testing.T) {
	store := &memStore{}
	d, _ := newDispatcher(t, Config{}, &fakeWhatsApp{}, store, nil)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, "booking.appointment.booked.v1", []byte("{")))
	require.NoError(t, d.Handle(ctx, "booking.appointment.booked.v1", []byte(`{"appointment_id":"x"}`)))
	require.NoError(t, d.Handle(ctx, "booking.other.v1", bookedBody(t)))
	assert.Empty(t, store.rows)
}

func TestHandleReturnsStorageErrors(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	d, _ := newDispatcher(t, Config{}, &fakeWhatsApp{}, store, nil)
	require.Error(t, d.Handle(context.Background(), "booking.appointment.cancelled.v1", bookedBody(t)))
}

func TestRemindTargetsClientOnly(t *testing.T) {
	store := &memStore{}
	wa := &fakeWhatsApp{}
	d, mail := newDispatcher(t, Config{PracticeEmail: "agenda@clinica.com"}, wa, store, nil)

	require.NoError(t, d.Remind(context.Background(), bookedBody(t)))
	require.Len(t, store.rows, 2)
	assert.Equal(t, templates.EventReminder, store.rows[0].EventType)
	require.Len(t, mail.Sent(), 1)
	assert.Equal(t, "ana@example.com", mail.Sent()[0].To)
}

func TestRemindFailsWhenNothingDelivered(t *testing.T) {
	store := &memStore{}
	d, _ := newDispatcher(t, Config{FailSuffix: "7"}, &fakeWhatsApp{err: errors.New("down")}, store, nil)

	body, err := json.Marshal(AppointmentEvent{AppointmentID: "appt-2", Date: "2026-02-16", Time: "09:00", CustomerPhone: "5511988887777"})
	require.NoError(t, err)
	require.Error(t, d.Remind(context.Background(), body))
	require.Len(t, store.rows, 1)
	assert.Equal(t, storage.StatusFailed, store.rows[0].Status)
}
