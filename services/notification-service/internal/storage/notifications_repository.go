package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Notification struct {
	ID            int64          `json:"id"`
	AppointmentID string         `json:"appointment_id"`
	EventType     string         `json:"event_type"`
	Channel       string         `json:"channel"`
	Recipient     string         `json:"recipient"`
	Payload       map[string]any `json:"payload,omitempty"`
	Status        string         `json:"status"`
	ProviderID    string         `json:"provider_id,omitempty"`
	ErrorReason   string         `json:"error_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	db Querier
}

func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	if n.Payload == nil {
		n.Payload = map[string]any{}
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, channel, recipient, payload, status, provider_id, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.AppointmentID, n.EventType, n.Channel, n.Recipient, payload, n.Status, n.ProviderID, n.ErrorReason)
	return err
}

// ListForAppointment returns the delivery history of one appointment, oldest
// first.
func (r *Repository) ListForAppointment(ctx context.Context, appointmentID string) ([]Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, appointment_id, event_type, channel, recipient, payload, status, provider_id, error_reason, created_at
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.AppointmentID, &n.EventType, &n.Channel, &n.Recipient, &payload, &n.Status, &n.ProviderID, &n.ErrorReason, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
