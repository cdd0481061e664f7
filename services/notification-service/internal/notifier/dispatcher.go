package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/podologia/agenda/services/notification-service/internal/email"
	"github.com/podologia/agenda/services/notification-service/internal/storage"
	"github.com/podologia/agenda/services/notification-service/internal/templates"
	"github.com/podologia/agenda/services/notification-service/internal/whatsapp"
)

const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// AppointmentEvent is the body the booking service publishes on every
// booking.appointment.* topic.
type AppointmentEvent struct {
	AppointmentID   string `json:"appointment_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	ServiceName     string `json:"service_name"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	Status          string `json:"status"`
	Source          string `json:"source"`
	PreviousDate    string `json:"previous_date"`
	PreviousTime    string `json:"previous_time"`
	PreviousStatus  string `json:"previous_status"`
}

type Store interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Config struct {
	PracticeName     string
	PracticeEmail    string
	PracticeWhatsApp string
	// FailSuffix forces a failed delivery for recipients ending with it.
	FailSuffix string
}

type Dispatcher struct {
	cfg      Config
	email    email.Sender
	whatsapp whatsapp.Sender
	renderer *templates.Renderer
	store    Store
	metrics  *Metrics
	logger   *slog.Logger
}

func NewDispatcher(cfg Config, mail email.Sender, wa whatsapp.Sender, renderer *templates.Renderer, store Store, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.PracticeName == "" {
		cfg.PracticeName = "Podologia"
	}
	return &Dispatcher{
		cfg:      cfg,
		email:    mail,
		whatsapp: wa,
		renderer: renderer,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

type delivery struct {
	audience  templates.Audience
	channel   string
	recipient string
	name      string
}

// Handle fans one appointment event out to the client and the practice.
// Provider failures are recorded as failed notifications; only storage errors
// are returned so the consumer retries.
func (d *Dispatcher) Handle(ctx context.Context, eventType string, body []byte) error {
	evt, ok := d.decode(eventType, body)
	if !ok {
		return nil
	}
	_, _, err := d.dispatch(ctx, eventType, evt, d.deliveries(evt))
	if errors.Is(err, templates.ErrUnknownEvent) {
		d.logger.Info("event has no notification", "event_type", eventType)
		return nil
	}
	return err
}

// Remind sends the reminder for an appointment to the client only. It fails
// when nothing could be delivered so the job is retried.
func (d *Dispatcher) Remind(ctx context.Context, body []byte) error {
	evt, ok := d.decode(templates.EventReminder, body)
	if !ok {
		return nil
	}
	var client []delivery
	for _, dl := range d.deliveries(evt) {
		if dl.audience == templates.Client {
			client = append(client, dl)
		}
	}
	sent, failed, err := d.dispatch(ctx, templates.EventReminder, evt, client)
	if err != nil {
		return err
	}
	if sent == 0 && failed > 0 {
		return fmt.Errorf("reminder for %s: every delivery failed", evt.AppointmentID)
	}
	return nil
}

func (d *Dispatcher) decode(eventType string, body []byte) (AppointmentEvent, bool) {
	var evt AppointmentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		d.logger.Error("invalid appointment payload", "err", err, "event_type", eventType)
		return evt, false
	}
	if evt.AppointmentID == "" || evt.Date == "" || evt.Time == "" {
		d.logger.Error("missing appointment fields", "event_type", eventType)
		return evt, false
	}
	return evt, true
}

func (d *Dispatcher) dispatch(ctx context.Context, eventType string, evt AppointmentEvent, list []delivery) (sent, failed int, err error) {
	data := templates.Data{
		PracticeName:    d.cfg.PracticeName,
		CustomerName:    evt.CustomerName,
		CustomerPhone:   evt.CustomerPhone,
		CustomerEmail:   evt.CustomerEmail,
		ServiceName:     evt.ServiceName,
		Date:            evt.Date,
		Time:            evt.Time,
		DurationMinutes: evt.DurationMinutes,
		Status:          evt.Status,
		Source:          evt.Source,
		PreviousDate:    evt.PreviousDate,
		PreviousTime:    evt.PreviousTime,
		PreviousStatus:  evt.PreviousStatus,
	}

	var errs []error
	for _, dl := range list {
		subject, text, err := d.renderer.Render(eventType, dl.audience, data)
		if err != nil {
			return sent, failed, err
		}

		status, providerID, reason := d.send(ctx, dl, subject, text)
		if status == storage.StatusSent {
			sent++
		} else {
			failed++
		}
		d.metrics.ObserveDelivery(dl.channel, string(dl.audience), status)
		if err := d.store.Insert(ctx, storage.Notification{
			AppointmentID: evt.AppointmentID,
			EventType:     eventType,
			Channel:       dl.channel,
			Recipient:     dl.recipient,
			Payload: map[string]any{
				"audience": string(dl.audience),
				"subject":  subject,
				"body":     text,
			},
			Status:      status,
			ProviderID:  providerID,
			ErrorReason: reason,
		}); err != nil {
			d.logger.Error("failed to persist notification", "err", err, "appointment_id", evt.AppointmentID)
			errs = append(errs, err)
			continue
		}
		d.logger.Info("notification processed",
			"appointment_id", evt.AppointmentID,
			"event_type", eventType,
			"channel", dl.channel,
			"audience", dl.audience,
			"status", status,
		)
	}
	return sent, failed, errors.Join(errs...)
}

func (d *Dispatcher) deliveries(evt AppointmentEvent) []delivery {
	var out []delivery
	add := func(aud templates.Audience, channel, recipient, name string) {
		if strings.TrimSpace(recipient) == "" {
			return
		}
		out = append(out, delivery{audience: aud, channel: channel, recipient: strings.TrimSpace(recipient), name: name})
	}
	add(templates.Client, ChannelEmail, evt.CustomerEmail, evt.CustomerName)
	add(templates.Client, ChannelWhatsApp, evt.CustomerPhone, evt.CustomerName)
	add(templates.Practice, ChannelEmail, d.cfg.PracticeEmail, d.cfg.PracticeName)
	add(templates.Practice, ChannelWhatsApp, d.cfg.PracticeWhatsApp, d.cfg.PracticeName)
	return out
}

func (d *Dispatcher) send(ctx context.Context, dl delivery, subject, text string) (status, providerID, reason string) {
	if d.cfg.FailSuffix != "" && strings.HasSuffix(dl.recipient, d.cfg.FailSuffix) {
		return storage.StatusFailed, "", "simulated failure"
	}

	var err error
	switch dl.channel {
	case ChannelEmail:
		providerID = d.email.ProviderID()
		err = d.email.Send(ctx, email.Message{To: dl.recipient, ToName: dl.name, Subject: subject, Body: text})
	case ChannelWhatsApp:
		providerID = d.whatsapp.ProviderID()
		err = d.whatsapp.Send(ctx, dl.recipient, text)
	}
	if err != nil {
		d.logger.Error("notification send failed", "err", err, "channel", dl.channel, "recipient", dl.recipient)
		return storage.StatusFailed, providerID, err.Error()
	}
	return storage.StatusSent, providerID, ""
}
