package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

// watchRepo implements WatchRepo for PostgreSQL.
type watchRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewWatchRepo creates a PostgreSQL watch-requests repository.
func NewWatchRepo(db *sqlx.DB, timeout time.Duration) persistence.WatchRepo {
	return &watchRepo{db: db, timeout: timeout}
}

func (r *watchRepo) Insert(ctx context.Context, watch schema.Watch) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO watch_requests (id, user_id, destination, budget_ceiling, min_fit_score, notify_on_inventory_below, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		watch.ID, watch.UserID, watch.Destination, watch.BudgetCeiling,
		watch.MinFitScore, watch.NotifyOnInventoryBelow, watch.Active)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate watch: %w", err)
		}
		return fmt.Errorf("failed to insert watch: %w", err)
	}

	return nil
}

func (r *watchRepo) ListActive(ctx context.Context) ([]schema.Watch, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, user_id, destination, budget_ceiling, min_fit_score, notify_on_inventory_below, active, created_at, last_triggered_at
		FROM watch_requests
		WHERE active = TRUE
		ORDER BY created_at`

	var watches []schema.Watch
	if err := r.db.SelectContext(ctx, &watches, query); err != nil {
		return nil, fmt.Errorf("failed to query active watches: %w", err)
	}

	return watches, nil
}

func (r *watchRepo) Deactivate(ctx context.Context, watchIDs []string, triggeredAt time.Time) error {
	if len(watchIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE watch_requests
		SET active = FALSE, last_triggered_at = $2
		WHERE id = ANY($1)`

	_, err := r.db.ExecContext(ctx, query, pq.Array(watchIDs), triggeredAt)
	if err != nil {
		return fmt.Errorf("failed to deactivate watches: %w", err)
	}

	return nil
}
