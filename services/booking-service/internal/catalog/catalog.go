package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/podologia/agenda/services/booking-service/internal/availability"
	"github.com/podologia/agenda/services/booking-service/internal/storage"
)

var (
	ErrNotFound       = errors.New("service not found")
	ErrInvalidService = errors.New("invalid service")
)

// Service is one procedure offered by the practice.
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Duration        string    `json:"duration"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Price           string    `json:"price"`
	Description     string    `json:"description"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Minutes prefers the explicit duration and falls back to parsing the free
// text one ("1h20m", "45min").
func (s Service) Minutes() int {
	if s.DurationMinutes != nil && *s.DurationMinutes > 0 {
		return *s.DurationMinutes
	}
	return availability.ParseDuration(s.Duration)
}

type Repository struct {
	db storage.Querier
}

func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `id::text, name, duration, duration_minutes, price::text, description, active, created_at`

func (r *Repository) Get(ctx context.Context, id string) (Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Service{}, ErrNotFound
	}
	svc, err := scanService(r.db.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Service{}, ErrNotFound
	}
	return svc, err
}

func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE ($1 = false OR active)
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, svc *Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	if svc.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidService)
	}
	if m := svc.DurationMinutes; m != nil && (*m <= 0 || *m > availability.MaxDurationMinutes) {
		return fmt.Errorf("%w: duration_minutes must be between 1 and %d", ErrInvalidService, availability.MaxDurationMinutes)
	}
	if svc.Price == "" {
		svc.Price = "0"
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO services (id, name, duration, duration_minutes, price, description, active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		RETURNING created_at
	`, svc.ID, svc.Name, svc.Duration, svc.DurationMinutes, svc.Price, svc.Description, svc.Active).Scan(&svc.CreatedAt)
}

// DurationFor resolves the appointment length of a catalog service.
func (r *Repository) DurationFor(ctx context.Context, id string) (int, error) {
	svc, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return svc.Minutes(), nil
}

func scanService(row pgx.Row) (Service, error) {
	var svc Service
	err := row.Scan(
		&svc.ID,
		&svc.Name,
		&svc.Duration,
		&svc.DurationMinutes,
		&svc.Price,
		&svc.Description,
		&svc.Active,
		&svc.CreatedAt,
	)
	return svc, err
}
