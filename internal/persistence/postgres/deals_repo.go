package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

// dealsRepo implements DealRepo for PostgreSQL. The payload column keeps
// the full event JSON for explanation and schema-forward reads.
type dealsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDealsRepo creates a PostgreSQL cached-deals repository.
func NewDealsRepo(db *sqlx.DB, timeout time.Duration) persistence.DealRepo {
	return &dealsRepo{db: db, timeout: timeout}
}

func (r *dealsRepo) Upsert(ctx context.Context, deal schema.Deal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payloadJSON, err := json.Marshal(deal.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	tagsJSON, err := json.Marshal(deal.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO cached_deals (deal_id, type, destination, summary, payload, tags, score, price_original, price_deal, price_discount, inventory, route, valid_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (deal_id) DO UPDATE SET
			type = EXCLUDED.type,
			destination = EXCLUDED.destination,
			summary = EXCLUDED.summary,
			payload = EXCLUDED.payload,
			tags = EXCLUDED.tags,
			score = EXCLUDED.score,
			price_original = EXCLUDED.price_original,
			price_deal = EXCLUDED.price_deal,
			price_discount = EXCLUDED.price_discount,
			inventory = EXCLUDED.inventory,
			route = EXCLUDED.route,
			valid_until = EXCLUDED.valid_until,
			updated_at = NOW()`

	_, err = r.db.ExecContext(ctx, query,
		deal.DealID, deal.Type, deal.Destination, deal.Summary,
		payloadJSON, tagsJSON, deal.Score,
		deal.Price.Original, deal.Price.Deal, deal.Price.Discount,
		deal.Inventory, deal.Route, deal.ValidUntil)
	if err != nil {
		return fmt.Errorf("failed to upsert deal %s: %w", deal.DealID, err)
	}

	return nil
}

func (r *dealsRepo) TopDeals(ctx context.Context, destination string, limit int) ([]schema.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT deal_id, type, destination, summary, payload, tags, score, price_original, price_deal, price_discount, inventory, route, valid_until, updated_at
		FROM cached_deals
		WHERE valid_until > NOW()`
	args := []any{}
	if destination != "" {
		query += ` AND destination = $1`
		args = append(args, destination)
	}
	query += fmt.Sprintf(` ORDER BY score DESC, updated_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top deals: %w", err)
	}
	defer rows.Close()

	var deals []schema.Deal
	for rows.Next() {
		var d schema.Deal
		var payloadJSON, tagsJSON []byte
		if err := rows.Scan(
			&d.DealID, &d.Type, &d.Destination, &d.Summary,
			&payloadJSON, &tagsJSON, &d.Score,
			&d.Price.Original, &d.Price.Deal, &d.Price.Discount,
			&d.Inventory, &d.Route, &d.ValidUntil, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &d.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}
		if len(tagsJSON) > 0 {
			if err := json.Unmarshal(tagsJSON, &d.Tags); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
			}
		}
		deals = append(deals, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return deals, nil
}
