package accounts

import "time"

// Account is one row of the accounts table. A DID may have multiple rows;
// the DID is a valid author as long as any of its rows has IsValid set.
// Rows are written by the account-admin bot; this service only reads them.
type Account struct {
	ID           int64
	DID          string
	Handle       string
	SubmissionID string
	IsValid      bool
	FeedAll      bool
	IndexedAt    time.Time
	ModLevel     int
	IsMuted      bool
	IsBanned     bool
	HiddenCount  int
	MutedCount   int
	BannedCount  int
	WarnedCount  int
}
