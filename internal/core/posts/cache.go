package posts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// KnownURICache is the shared set of recently indexed post URIs. The commit
// processors consult it to drop duplicate creates and deletes for posts that
// were never indexed. Lookups against a fresh snapshot take only a read
// lock, so they never block each other; when the snapshot ages past the TTL
// the caller that observed the staleness rebuilds it from the store, with
// refreshMu keeping the rebuild single-flight and the store query outside
// the snapshot lock. Add and Remove keep intra-TTL writes visible without a
// database round trip.
type KnownURICache struct {
	repo   Repository
	ttl    time.Duration
	window time.Duration

	refreshMu sync.Mutex

	mu          sync.RWMutex
	uris        map[string]struct{}
	lastRefresh time.Time
}

// NewKnownURICache creates the cache. window bounds the refresh query to
// recently indexed posts so the set stays small.
func NewKnownURICache(repo Repository, ttl, window time.Duration) *KnownURICache {
	return &KnownURICache{
		repo:   repo,
		ttl:    ttl,
		window: window,
		uris:   make(map[string]struct{}),
	}
}

// Contains reports whether uri is in the known set, refreshing from the
// store first when the snapshot is stale.
func (c *KnownURICache) Contains(ctx context.Context, uri string) (bool, error) {
	c.mu.RLock()
	fresh := time.Since(c.lastRefresh) <= c.ttl
	_, ok := c.uris[uri]
	c.mu.RUnlock()
	if fresh {
		return ok, nil
	}

	if err := c.refresh(ctx); err != nil {
		return false, err
	}

	c.mu.RLock()
	_, ok = c.uris[uri]
	c.mu.RUnlock()
	return ok, nil
}

// Add records a freshly inserted URI so duplicate creates are masked until
// the next refresh picks it up from the store.
func (c *KnownURICache) Add(uri string) {
	c.mu.Lock()
	c.uris[uri] = struct{}{}
	c.mu.Unlock()
}

// Remove drops deleted URIs from the snapshot.
func (c *KnownURICache) Remove(uris ...string) {
	c.mu.Lock()
	for _, uri := range uris {
		delete(c.uris, uri)
	}
	c.mu.Unlock()
}

// Len returns the current snapshot size.
func (c *KnownURICache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.uris)
}

func (c *KnownURICache) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for refreshMu.
	c.mu.RLock()
	fresh := time.Since(c.lastRefresh) <= c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	uris, err := c.repo.RecentURIs(ctx, time.Now().Add(-c.window))
	if err != nil {
		return fmt.Errorf("refresh known post cache: %w", err)
	}

	snapshot := make(map[string]struct{}, len(uris))
	for _, uri := range uris {
		snapshot[uri] = struct{}{}
	}

	c.mu.Lock()
	c.uris = snapshot
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	return nil
}
