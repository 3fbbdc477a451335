package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Astrofeed/internal/core/accounts"
)

type postgresAccountRepo struct {
	db *sql.DB
}

// NewAccountRepository creates the PostgreSQL account repository. Accounts
// are written by the account-admin bot; this side only reads.
func NewAccountRepository(db *sql.DB) accounts.Repository {
	return &postgresAccountRepo{db: db}
}

// ValidDIDs returns every DID that has at least one is_valid row.
func (r *postgresAccountRepo) ValidDIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT did FROM accounts WHERE is_valid`,
	)
	if err != nil {
		return nil, fmt.Errorf("select valid dids: %w", err)
	}
	defer rows.Close()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("scan did: %w", err)
		}
		dids = append(dids, did)
	}
	return dids, rows.Err()
}
