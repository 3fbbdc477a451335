package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ValidDIDCache is the shared snapshot of valid author DIDs. Lookups against
// a fresh snapshot take only a read lock, so they never block each other.
// When the snapshot ages past the TTL the caller that observed the staleness
// rebuilds it from the store; refreshMu keeps that rebuild single-flight and
// the store query runs outside the snapshot lock.
type ValidDIDCache struct {
	repo Repository
	ttl  time.Duration

	refreshMu sync.Mutex

	mu          sync.RWMutex
	dids        map[string]struct{}
	lastRefresh time.Time
}

// NewValidDIDCache creates the cache with an empty snapshot; the first
// lookup populates it.
func NewValidDIDCache(repo Repository, ttl time.Duration) *ValidDIDCache {
	return &ValidDIDCache{
		repo: repo,
		ttl:  ttl,
		dids: make(map[string]struct{}),
	}
}

// Contains reports whether did is currently a valid author.
func (c *ValidDIDCache) Contains(ctx context.Context, did string) (bool, error) {
	c.mu.RLock()
	fresh := time.Since(c.lastRefresh) <= c.ttl
	_, ok := c.dids[did]
	c.mu.RUnlock()
	if fresh {
		return ok, nil
	}

	if err := c.refresh(ctx); err != nil {
		return false, err
	}

	c.mu.RLock()
	_, ok = c.dids[did]
	c.mu.RUnlock()
	return ok, nil
}

// Len returns the current snapshot size.
func (c *ValidDIDCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dids)
}

func (c *ValidDIDCache) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for refreshMu.
	c.mu.RLock()
	fresh := time.Since(c.lastRefresh) <= c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	dids, err := c.repo.ValidDIDs(ctx)
	if err != nil {
		return fmt.Errorf("refresh valid author cache: %w", err)
	}

	snapshot := make(map[string]struct{}, len(dids))
	for _, did := range dids {
		snapshot[did] = struct{}{}
	}

	c.mu.Lock()
	c.dids = snapshot
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	return nil
}
