package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceID = "6f1f3d2a-3c1e-4b59-9a57-1b0d3c9e1a03"

var serviceCols = []string{"id", "name", "duration", "duration_minutes", "price", "description", "active", "created_at"}

func TestServiceMinutes(t *testing.T) {
	explicit := 45
	cases := []struct {
		name string
		svc  Service
		want int
	}{
		{"explicit wins", Service{Duration: "2h", DurationMinutes: &explicit}, 45},
		{"free text", Service{Duration: "1h20m"}, 80},
		{"minutes only", Service{Duration: "30 min"}, 30},
		{"empty defaults", Service{}, 60},
		{"garbage defaults", Service{Duration: "a combinar"}, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.svc.Minutes())
		})
	}
}

func TestDurationFor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM services").
		WithArgs(serviceID).
		WillReturnRows(pgxmock.NewRows(serviceCols).
			AddRow(serviceID, "Tratamento de onicocriptose", "1h20m", (*int)(nil), "220.00", "", true, time.Now()))

	repo := NewRepository(mock)
	minutes, err := repo.DurationFor(context.Background(), serviceID)
	require.NoError(t, err)
	assert.Equal(t, 80, minutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM services").
		WithArgs(serviceID).
		WillReturnError(pgx.ErrNoRows)

	repo := NewRepository(mock)
	_, err = repo.Get(context.Background(), serviceID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = repo.Get(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	thirty := 30
	mock.ExpectQuery("FROM services").
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows(serviceCols).
			AddRow("6f1f3d2a-3c1e-4b59-9a57-1b0d3c9e1a04", "Laserterapia", "", &thirty, "120.00", "", true, time.Now()).
			AddRow("6f1f3d2a-3c1e-4b59-9a57-1b0d3c9e1a02", "Podoprofilaxia", "1h", (*int)(nil), "150.00", "", true, time.Now()))

	services, err := NewRepository(mock).List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, 30, services[0].Minutes())
	assert.Equal(t, 60, services[1].Minutes())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateValidates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock)
	require.ErrorIs(t, repo.Create(context.Background(), &Service{Name: "  "}), ErrInvalidService)

	zero := 0
	require.Error(t, repo.Create(context.Background(), &Service{Name: "Avaliação", DurationMinutes: &zero}))
	tooLong := 2000
	require.ErrorIs(t, repo.Create(context.Background(), &Service{Name: "Avaliação", DurationMinutes: &tooLong}), ErrInvalidService)

	mock.ExpectQuery("INSERT INTO services").
		WithArgs(pgxmock.AnyArg(), "Avaliação", "20min", (*int)(nil), "0", "", true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := &Service{Name: " Avaliação ", Duration: "20min", Active: true}
	require.NoError(t, repo.Create(context.Background(), svc))
	assert.NotEmpty(t, svc.ID)
	assert.Equal(t, 20, svc.Minutes())
	require.NoError(t, mock.ExpectationsWereMet())
}
