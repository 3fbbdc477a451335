package posts

import (
	"context"
	"time"
)

// Repository is the write-side and cache-refresh contract for posts.
type Repository interface {
	// CreatePosts inserts the batch and deletes deleteURIs in a single
	// transaction. Inserts are idempotent on URI: a post already indexed is
	// a no-op, not an error.
	CreatePosts(ctx context.Context, create []*Post, deleteURIs []string) error

	// RecentURIs returns the URIs of posts indexed since the given time,
	// backing the known-post cache.
	RecentURIs(ctx context.Context, since time.Time) ([]string, error)
}
