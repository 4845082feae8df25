package cache

import (
	"sync"
	"time"

	"github.com/epeers/etfarchive/internal/models"
)

// SnapshotCache provides an in-memory L1 cache of latest snapshots so the
// read API doesn't re-parse CSV files on every request.
type SnapshotCache struct {
	snapshots map[string]snapshotEntry
	mu        sync.RWMutex
	ttl       time.Duration
}

type snapshotEntry struct {
	records   []models.HoldingRecord
	fetchedAt time.Time
}

// NewSnapshotCache creates a new in-memory cache
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		snapshots: make(map[string]snapshotEntry),
		ttl:       ttl,
	}
}

// Get retrieves a cached snapshot if fresh
func (c *SnapshotCache) Get(fund string) ([]models.HoldingRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.snapshots[fund]
	if !exists {
		return nil, false
	}
	if time.Since(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return entry.records, true
}

// Set caches a fund's snapshot
func (c *SnapshotCache) Set(fund string, records []models.HoldingRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshots[fund] = snapshotEntry{
		records:   records,
		fetchedAt: time.Now(),
	}
}

// Invalidate removes a fund's snapshot from the cache
func (c *SnapshotCache) Invalidate(fund string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.snapshots, fund)
}

// Clear removes all cached data
func (c *SnapshotCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshots = make(map[string]snapshotEntry)
}
