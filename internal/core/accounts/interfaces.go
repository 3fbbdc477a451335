package accounts

import "context"

// Repository is the read contract over the account-admin bot's table.
type Repository interface {
	// ValidDIDs returns every DID with at least one is_valid row.
	ValidDIDs(ctx context.Context) ([]string, error)
}
