package subscriptions

import "context"

// FirehoseService is the subscription_state row key used by the ingestion
// pipeline.
const FirehoseService = "firehose"

// Repository persists per-service firehose cursors.
type Repository interface {
	// Init inserts a zero cursor row for the service if none exists.
	Init(ctx context.Context, service string) error

	// GetCursor returns the last durably acknowledged sequence number.
	GetCursor(ctx context.Context, service string) (int64, error)

	// SetCursor advances the persisted cursor. Writes that would move the
	// cursor backwards are dropped, so racing workers cannot regress it.
	SetCursor(ctx context.Context, service string, cursor int64) error
}
