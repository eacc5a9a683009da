package cache

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

const (
	// Default settings
	defaultShardCount      = 16
	defaultGCTime          = 5 * time.Minute
	defaultCleanupInterval = 1 * time.Minute
)

// cacheItem is a stored query result
type cacheItem struct {
	value      any
	updatedAt  time.Time
	lastAccess time.Time
	stale      bool
}

// unusedSince reports whether the item was not read after cutoff
func (item *cacheItem) unusedSince(cutoff time.Time) bool {
	return item.lastAccess.Before(cutoff)
}

func (item *cacheItem) entry() domain.CacheEntry {
	return domain.CacheEntry{
		Value:      item.value,
		UpdatedAt:  item.updatedAt,
		LastAccess: item.lastAccess,
		Stale:      item.stale,
	}
}

// cacheShard is a single shard of the cache with its own lock
type cacheShard struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
}

// ShardedCache is a thread-safe sharded store of query results.
//
// Entries are never expired by age. An entry that nobody read for the GC
// window is dropped by the cleanup worker; invalidation only flags entries
// stale so the last good value stays readable while it is refetched.
type ShardedCache struct {
	shards          []*cacheShard
	shardCount      int
	gcTime          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	// Cleanup worker management
	cleanupWorkerRunning bool
	cleanupWorkerMu      sync.Mutex
	cleanupWorkerStop    chan struct{}
	cleanupWorkerWg      sync.WaitGroup
}

// Option configures a ShardedCache
type Option func(*ShardedCache)

// WithCleanupInterval sets how often the cleanup worker runs
func WithCleanupInterval(d time.Duration) Option {
	return func(c *ShardedCache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *ShardedCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewShardedCache creates a cache with shardCount shards and an unused-entry
// GC window of gcTime.
func NewShardedCache(shardCount int, gcTime time.Duration, opts ...Option) *ShardedCache {
	if shardCount < 1 {
		shardCount = defaultShardCount
	}
	if gcTime <= 0 {
		gcTime = defaultGCTime
	}

	shards := make([]*cacheShard, shardCount)
	for i := range shards {
		shards[i] = &cacheShard{
			items: make(map[string]*cacheItem),
		}
	}

	c := &ShardedCache{
		shards:            shards,
		shardCount:        shardCount,
		gcTime:            gcTime,
		cleanupInterval:   defaultCleanupInterval,
		now:               time.Now,
		cleanupWorkerStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getShard returns the shard for a given key using FNV hash
func (c *ShardedCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.shardCount)]
}

// Get returns the entry for key and refreshes its last access time
func (c *ShardedCache) Get(ctx context.Context, key string) (domain.CacheEntry, bool) {
	select {
	case <-ctx.Done():
		return domain.CacheEntry{}, false
	default:
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	item, exists := shard.items[key]
	if !exists {
		return domain.CacheEntry{}, false
	}
	item.lastAccess = c.now()
	return item.entry(), true
}

// Set stores value under key
func (c *ShardedCache) Set(ctx context.Context, key string, value any, stale bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := c.now()
	shard.items[key] = &cacheItem{
		value:      value,
		updatedAt:  now,
		lastAccess: now,
		stale:      stale,
	}
	return nil
}

// Delete removes a single key
func (c *ShardedCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.items, key)
	return nil
}

// MarkStale flags every entry under prefix. Keys sharing a prefix are spread
// over all shards, so every shard is visited.
func (c *ShardedCache) MarkStale(ctx context.Context, prefix string) (int, error) {
	return c.walkPrefix(ctx, prefix, func(items map[string]*cacheItem, key string) {
		items[key].stale = true
	})
}

// DeletePrefix removes every entry under prefix
func (c *ShardedCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return c.walkPrefix(ctx, prefix, func(items map[string]*cacheItem, key string) {
		delete(items, key)
	})
}

func (c *ShardedCache) walkPrefix(ctx context.Context, prefix string, fn func(map[string]*cacheItem, string)) (int, error) {
	matched := 0
	for _, shard := range c.shards {
		select {
		case <-ctx.Done():
			return matched, ctx.Err()
		default:
		}

		shard.mu.Lock()
		for key := range shard.items {
			if MatchesPrefix(key, prefix) {
				fn(shard.items, key)
				matched++
			}
		}
		shard.mu.Unlock()
	}
	return matched, nil
}

// MatchesPrefix reports whether key equals prefix or continues it with a
// new segment. An empty prefix matches everything.
func MatchesPrefix(key, prefix string) bool {
	if prefix == "" || key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+domain.KeySeparator)
}

// CleanExpired removes entries that were not read within the GC window
func (c *ShardedCache) CleanExpired(ctx context.Context) error {
	cutoff := c.now().Add(-c.gcTime)
	for _, shard := range c.shards {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		shard.mu.Lock()
		for key, item := range shard.items {
			if item.unusedSince(cutoff) {
				delete(shard.items, key)
			}
		}
		shard.mu.Unlock()
	}
	return nil
}

// StartCleanupWorker starts a background goroutine that periodically removes unused items
func (c *ShardedCache) StartCleanupWorker() {
	c.cleanupWorkerMu.Lock()
	defer c.cleanupWorkerMu.Unlock()

	if c.cleanupWorkerRunning {
		return
	}

	c.cleanupWorkerRunning = true
	c.cleanupWorkerStop = make(chan struct{})

	c.cleanupWorkerWg.Add(1)
	go c.cleanupWorker(c.cleanupWorkerStop)
}

// StopCleanupWorker stops the background cleanup worker gracefully
func (c *ShardedCache) StopCleanupWorker() {
	c.cleanupWorkerMu.Lock()
	defer c.cleanupWorkerMu.Unlock()

	if !c.cleanupWorkerRunning {
		return
	}

	close(c.cleanupWorkerStop)
	c.cleanupWorkerWg.Wait()
	c.cleanupWorkerRunning = false
}

func (c *ShardedCache) cleanupWorker(stop <-chan struct{}) {
	defer c.cleanupWorkerWg.Done()

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = c.CleanExpired(ctx)
			cancel()
		}
	}
}

// Clear removes all items from the cache
func (c *ShardedCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.items = make(map[string]*cacheItem)
		shard.mu.Unlock()
	}
}

// Stats represents cache statistics
type Stats struct {
	ShardCount int         `json:"shardCount"`
	TotalItems int         `json:"totalItems"`
	StaleItems int         `json:"staleItems"`
	ShardStats []ShardStat `json:"shardStats,omitempty"`
}

// ShardStat represents statistics for a single shard
type ShardStat struct {
	Index      int `json:"index"`
	ItemCount  int `json:"itemCount"`
	StaleCount int `json:"staleCount"`
}

// GetStats returns cache statistics
func (c *ShardedCache) GetStats() Stats {
	stats := Stats{
		ShardCount: c.shardCount,
		ShardStats: make([]ShardStat, c.shardCount),
	}

	for i, shard := range c.shards {
		shard.mu.RLock()
		itemCount := len(shard.items)
		staleCount := 0
		for _, item := range shard.items {
			if item.stale {
				staleCount++
			}
		}
		shard.mu.RUnlock()

		stats.ShardStats[i] = ShardStat{
			Index:      i,
			ItemCount:  itemCount,
			StaleCount: staleCount,
		}
		stats.TotalItems += itemCount
		stats.StaleItems += staleCount
	}

	return stats
}

// Verify that ShardedCache implements domain.Cache interface
var _ domain.Cache = (*ShardedCache)(nil)
