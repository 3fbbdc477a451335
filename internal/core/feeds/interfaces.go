package feeds

import (
	"context"
	"time"
)

// PostRef is one row of a feed page: enough to emit a skeleton entry and to
// build the next cursor.
type PostRef struct {
	URI       string
	CID       string
	IndexedAt time.Time
}

// SkeletonRepository is the read path behind getFeedSkeleton.
type SkeletonRepository interface {
	// GetFeedPage returns up to limit posts for a classifier feed, newest
	// first by (indexed_at, cid), restricted to valid non-hidden authors.
	// A nil cursor means the first page.
	GetFeedPage(ctx context.Context, feedName string, cursor *Cursor, limit int) ([]PostRef, error)

	// GetSignupPage returns the signup feed, which is backed by the bot
	// collaborator's actions table rather than classified posts.
	GetSignupPage(ctx context.Context, cursor *Cursor, limit int) ([]PostRef, error)
}
