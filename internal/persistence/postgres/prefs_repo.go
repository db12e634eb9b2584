package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tripdeck/concierge/internal/persistence"
	"github.com/tripdeck/concierge/internal/schema"
)

type prefsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPreferenceRepo creates a PostgreSQL user-preferences repository.
func NewPreferenceRepo(db *sqlx.DB, timeout time.Duration) persistence.PreferenceRepo {
	return &prefsRepo{db: db, timeout: timeout}
}

func (r *prefsRepo) Upsert(ctx context.Context, userID, destination string, prefs schema.BundlePreferences) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	query := `
		INSERT INTO user_preferences (user_id, destination, preferences, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			destination = EXCLUDED.destination,
			preferences = EXCLUDED.preferences,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, destination, prefsJSON); err != nil {
		return fmt.Errorf("failed to upsert preferences for %s: %w", userID, err)
	}

	return nil
}

func (r *prefsRepo) Get(ctx context.Context, userID string) (*schema.BundlePreferences, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var prefsJSON []byte
	err := r.db.QueryRowxContext(ctx,
		`SELECT preferences FROM user_preferences WHERE user_id = $1`, userID).
		Scan(&prefsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preferences for %s: %w", userID, err)
	}

	var prefs schema.BundlePreferences
	if err := json.Unmarshal(prefsJSON, &prefs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	return &prefs, nil
}
