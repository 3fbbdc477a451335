package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Astrofeed/internal/core/subscriptions"
)

type postgresSubscriptionRepo struct {
	db *sql.DB
}

// NewSubscriptionRepository creates the PostgreSQL subscription state
// repository.
func NewSubscriptionRepository(db *sql.DB) subscriptions.Repository {
	return &postgresSubscriptionRepo{db: db}
}

// Init inserts a zero cursor row for the service if none exists.
func (r *postgresSubscriptionRepo) Init(ctx context.Context, service string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscription_state (service, cursor) VALUES ($1, 0)
		 ON CONFLICT (service) DO NOTHING`, service,
	)
	if err != nil {
		return fmt.Errorf("init cursor for %s: %w", service, err)
	}
	return nil
}

// GetCursor returns the persisted cursor for the service.
func (r *postgresSubscriptionRepo) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor FROM subscription_state WHERE service = $1`, service,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no subscription state for %s", service)
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor for %s: %w", service, err)
	}
	return cursor, nil
}

// SetCursor advances the persisted cursor. The WHERE guard keeps the cursor
// monotonic when workers race their periodic write-through.
func (r *postgresSubscriptionRepo) SetCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscription_state SET cursor = $2
		 WHERE service = $1 AND cursor < $2`, service, cursor,
	)
	if err != nil {
		return fmt.Errorf("write cursor for %s: %w", service, err)
	}
	return nil
}
