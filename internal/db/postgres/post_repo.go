package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"

	"Astrofeed/internal/core/feeds"
	"Astrofeed/internal/core/posts"
)

type postgresPostRepo struct {
	db *sql.DB
}

// NewPostRepository creates the PostgreSQL post repository.
func NewPostRepository(db *sql.DB) posts.Repository {
	return &postgresPostRepo{db: db}
}

// feedColumns is the whitelist of per-feed boolean columns, derived from the
// configured feed list. Dynamic SQL only ever interpolates these names.
var feedColumns = func() []string {
	cols := make([]string, 0, len(feeds.All))
	for _, f := range feeds.All {
		cols = append(cols, "feed_"+f.Name)
	}
	return cols
}()

// CreatePosts inserts the batch and deletes deleteURIs in one transaction.
// Duplicate URIs are dropped by ON CONFLICT DO NOTHING, so a create replayed
// after a cursor rewind or raced across workers is a no-op.
func (r *postgresPostRepo) CreatePosts(ctx context.Context, create []*posts.Post, deleteURIs []string) error {
	if len(create) == 0 && len(deleteURIs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			log.Printf("Failed to rollback post transaction: %v", rollbackErr)
		}
	}()

	for _, post := range create {
		if err := insertPost(ctx, tx, post); err != nil {
			return err
		}
	}

	if len(deleteURIs) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM posts WHERE uri = ANY($1)`, pq.Array(deleteURIs),
		); err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post transaction: %w", err)
	}
	return nil
}

func insertPost(ctx context.Context, tx *sql.Tx, post *posts.Post) error {
	indexedAt := post.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}
	// Page cursors carry indexed_at at millisecond precision; the stored
	// value must round-trip through them exactly or the pagination predicate
	// skips rows inside the boundary millisecond.
	indexedAt = indexedAt.UTC().Truncate(time.Millisecond)

	cols := []string{"uri", "cid", "author", "text", "indexed_at", "hidden"}
	args := []interface{}{post.URI, post.CID, post.Author, post.Text, indexedAt, post.Hidden}

	for _, col := range feedColumns {
		cols = append(cols, col)
		args = append(args, post.Feeds[strings.TrimPrefix(col, "feed_")])
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		`INSERT INTO posts (%s) VALUES (%s) ON CONFLICT (uri) DO NOTHING`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert post %s: %w", post.URI, err)
	}
	return nil
}

// RecentURIs returns URIs of posts indexed since the given time, backing the
// known-post cache refresh.
func (r *postgresPostRepo) RecentURIs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT uri FROM posts WHERE indexed_at > $1`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("select recent post uris: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scan post uri: %w", err)
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}
