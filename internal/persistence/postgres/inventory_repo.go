package postgres

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tripdeck/concierge/internal/persistence"
)

// inventoryRepo samples operational inventory for deal mining. Sampling is
// offset-based: a random offset into the available rows avoids an
// ORDER BY random() full-table sort.
type inventoryRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewInventoryRepo creates a PostgreSQL inventory sampler.
func NewInventoryRepo(db *sqlx.DB, timeout time.Duration) persistence.InventoryRepo {
	return &inventoryRepo{db: db, timeout: timeout}
}

func randomOffset(count, limit int) int {
	max := count - limit
	if max < 1 {
		return 0
	}
	return rand.Intn(max)
}

func (r *inventoryRepo) SampleFlights(ctx context.Context, limit int) ([]persistence.SampledFlight, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM flights WHERE available_seats > 0`).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count flights: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	query := `
		SELECT id, airline, origin_airport_code, destination_airport_code, departure_time, price, currency, available_seats, changeable
		FROM flights
		WHERE available_seats > 0
		LIMIT $1 OFFSET $2`

	var flights []persistence.SampledFlight
	if err := r.db.SelectContext(ctx, &flights, query, limit, randomOffset(count, limit)); err != nil {
		return nil, fmt.Errorf("failed to sample flights: %w", err)
	}

	return flights, nil
}

func (r *inventoryRepo) SampleHotelRooms(ctx context.Context, limit int) ([]persistence.SampledHotelRoom, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*)
		FROM hotel_rooms hr
		JOIN hotels h ON hr.hotel_id = h.id
		WHERE hr.available = TRUE`).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count hotel rooms: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	query := `
		SELECT hr.id, h.name AS hotel_name, hr.room_type, h.star_rating, h.address_city, hr.price_per_night, hr.currency, hr.available_rooms
		FROM hotel_rooms hr
		JOIN hotels h ON hr.hotel_id = h.id
		WHERE hr.available = TRUE
		LIMIT $1 OFFSET $2`

	var rooms []persistence.SampledHotelRoom
	if err := r.db.SelectContext(ctx, &rooms, query, limit, randomOffset(count, limit)); err != nil {
		return nil, fmt.Errorf("failed to sample hotel rooms: %w", err)
	}

	return rooms, nil
}
