package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Astrofeed/internal/core/feeds"
)

type postgresFeedRepo struct {
	db *sql.DB
}

// NewFeedRepository creates the read-path repository behind getFeedSkeleton.
func NewFeedRepository(db *sql.DB) feeds.SkeletonRepository {
	return &postgresFeedRepo{db: db}
}

// GetFeedPage returns one page of a classifier feed, newest first. The feed
// column is resolved through the configured feed list, never from request
// input, so the dynamic column name cannot be injected.
func (r *postgresFeedRepo) GetFeedPage(ctx context.Context, feedName string, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error) {
	feed, ok := feeds.ByName(feedName)
	if !ok {
		return nil, fmt.Errorf("unknown feed %q", feedName)
	}

	query := fmt.Sprintf(`
		SELECT p.uri, p.cid, p.indexed_at
		FROM posts p
		WHERE p.feed_%s
		  AND NOT p.hidden
		  AND EXISTS (SELECT 1 FROM accounts a WHERE a.did = p.author AND a.is_valid)`,
		feed.Name,
	)

	args := []interface{}{}
	if cursor != nil {
		query += `
		  AND (p.indexed_at < $1 OR (p.indexed_at = $1 AND p.cid < $2))`
		args = append(args, cursor.IndexedAt(), cursor.CID)
	}

	query += fmt.Sprintf(`
		ORDER BY p.indexed_at DESC, p.cid DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	return r.queryRefs(ctx, query, args...)
}

// GetSignupPage returns the signup feed from the bot collaborator's actions
// table. Each signup thread surfaces its latest post.
func (r *postgresFeedRepo) GetSignupPage(ctx context.Context, cursor *feeds.Cursor, limit int) ([]feeds.PostRef, error) {
	query := `
		SELECT b.latest_uri, b.latest_cid, b.indexed_at
		FROM bot_actions b
		WHERE b.type = 'signup' AND b.latest_uri <> ''`

	args := []interface{}{}
	if cursor != nil {
		query += `
		  AND (b.indexed_at < $1 OR (b.indexed_at = $1 AND b.latest_cid < $2))`
		args = append(args, cursor.IndexedAt(), cursor.CID)
	}

	query += fmt.Sprintf(`
		ORDER BY b.indexed_at DESC, b.latest_cid DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	return r.queryRefs(ctx, query, args...)
}

func (r *postgresFeedRepo) queryRefs(ctx context.Context, query string, args ...interface{}) ([]feeds.PostRef, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select feed page: %w", err)
	}
	defer rows.Close()

	var refs []feeds.PostRef
	for rows.Next() {
		var ref feeds.PostRef
		if err := rows.Scan(&ref.URI, &ref.CID, &ref.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan feed row: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
