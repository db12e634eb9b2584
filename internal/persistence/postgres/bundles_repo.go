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

// bundlesRepo implements BundleRepo for PostgreSQL.
type bundlesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBundlesRepo creates a PostgreSQL bundles repository.
func NewBundlesRepo(db *sqlx.DB, timeout time.Duration) persistence.BundleRepo {
	return &bundlesRepo{db: db, timeout: timeout}
}

func (r *bundlesRepo) InsertBatch(ctx context.Context, records []persistence.BundleRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bundles (id, search_id, user_id, destination, total_price, savings, fit_score, explanation, components, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		componentsJSON, err := json.Marshal(rec.Components)
		if err != nil {
			return fmt.Errorf("failed to marshal components: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.ID, rec.SearchID, rec.UserID, rec.Destination,
			rec.TotalPrice, rec.Savings, rec.FitScore, rec.Explanation,
			componentsJSON, rec.ValidUntil)
		if err != nil {
			return fmt.Errorf("failed to insert bundle %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

func (r *bundlesRepo) ListByUser(ctx context.Context, userID string, limit int) ([]persistence.BundleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, search_id, user_id, destination, total_price, savings, fit_score, explanation, components, valid_until, created_at
		FROM bundles
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles by user: %w", err)
	}
	defer rows.Close()

	var records []persistence.BundleRecord
	for rows.Next() {
		var rec persistence.BundleRecord
		var componentsJSON []byte
		if err := rows.Scan(
			&rec.ID, &rec.SearchID, &rec.UserID, &rec.Destination,
			&rec.TotalPrice, &rec.Savings, &rec.FitScore, &rec.Explanation,
			&componentsJSON, &rec.ValidUntil, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bundle: %w", err)
		}
		if len(componentsJSON) > 0 {
			if err := json.Unmarshal(componentsJSON, &rec.Components); err != nil {
				return nil, fmt.Errorf("failed to unmarshal components: %w", err)
			}
		} else {
			rec.Components = []schema.BundleComponent{}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}
