// Package query is the remote query primitive: key-addressed caching of
// fetch results, one in-flight fetch per key, and prefix invalidation.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bcgov/lcfs-portal/internal/cache"
	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/pagination"
)

const (
	defaultStaleTime   = time.Minute
	defaultPrefetchMax = 4
)

// FetchFunc performs one network round-trip for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Options tune a single query.
type Options struct {
	// Disabled queries never touch the network; used while scope ids are unknown.
	Disabled bool

	// StaleTime overrides the client default. Negative means the entry stays
	// fresh until it is invalidated.
	StaleTime time.Duration
}

// Result is the state of a query after Query returns.
type Result struct {
	Data any
	Err  error

	// Stale is set when Data is the last good value kept after a failed refetch.
	Stale     bool
	FromCache bool
	Disabled  bool
	UpdatedAt time.Time
}

// flight tracks an in-flight fetch so invalidation can reach it
type flight struct {
	invalidated bool
}

// Client caches query results in a domain.Cache.
type Client struct {
	cache     domain.Cache
	logger    *zap.Logger
	metrics   *Metrics
	staleTime time.Duration
	now       func() time.Time

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]*flight
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithStaleTime sets how long a fetched entry is served without refetching.
func WithStaleTime(d time.Duration) ClientOption {
	return func(c *Client) {
		if d != 0 {
			c.staleTime = d
		}
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a query client over store.
func NewClient(store domain.Cache, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cache:     store,
		logger:    logger,
		metrics:   NewMetrics(nil),
		staleTime: defaultStaleTime,
		now:       time.Now,
		inflight:  make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query serves key from cache when fresh and otherwise fetches it. Concurrent
// callers with the same key share one fetch. When a refetch fails and an older
// value exists, that value is returned alongside the error.
func (c *Client) Query(ctx context.Context, key pagination.Key, fetch FetchFunc, opts Options) Result {
	if opts.Disabled {
		return Result{Disabled: true}
	}
	if key.IsZero() {
		return Result{Err: fmt.Errorf("%w: empty cache key", domain.ErrInvalidRequest)}
	}

	resource := key.Resource()
	k := key.String()

	entry, cached := c.cache.Get(ctx, k)
	if cached && c.isFresh(entry, opts) {
		c.metrics.Hits.WithLabelValues(resource).Inc()
		return Result{Data: entry.Value, FromCache: true, UpdatedAt: entry.UpdatedAt}
	}

	value, err := c.fetch(ctx, key, fetch)
	if err != nil {
		if cached {
			c.logger.Debug("refetch failed, serving last good value",
				zap.String("resource", resource),
				zap.Error(err),
			)
			return Result{
				Data:      entry.Value,
				Err:       err,
				Stale:     true,
				FromCache: true,
				UpdatedAt: entry.UpdatedAt,
			}
		}
		return Result{Err: err}
	}
	return Result{Data: value, UpdatedAt: c.now()}
}

func (c *Client) isFresh(entry domain.CacheEntry, opts Options) bool {
	if entry.Stale {
		return false
	}
	staleTime := c.staleTime
	if opts.StaleTime != 0 {
		staleTime = opts.StaleTime
	}
	if staleTime < 0 {
		return true
	}
	return c.now().Sub(entry.UpdatedAt) < staleTime
}

// fetch runs fn at most once per key at a time. The shared fetch is detached
// from the caller's cancellation; a caller whose ctx ends stops waiting.
func (c *Client) fetch(ctx context.Context, key pagination.Key, fn FetchFunc) (any, error) {
	k := key.String()
	resource := key.Resource()

	ch := c.group.DoChan(k, func() (any, error) {
		f := c.beginFlight(k)
		defer c.endFlight(k, f)

		value, err := fn(context.WithoutCancel(ctx))
		c.metrics.Fetches.WithLabelValues(resource, outcome(err)).Inc()
		if err != nil {
			return nil, err
		}

		stale := c.flightInvalidated(f)
		if err := c.cache.Set(context.Background(), k, value, stale); err != nil {
			c.logger.Warn("failed to store query result",
				zap.String("resource", resource),
				zap.Error(err),
			)
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.Deduplicated.WithLabelValues(resource).Inc()
		}
		return res.Val, res.Err
	}
}

func (c *Client) beginFlight(k string) *flight {
	f := &flight{}
	c.mu.Lock()
	c.inflight[k] = f
	c.mu.Unlock()
	return f
}

func (c *Client) endFlight(k string, f *flight) {
	c.mu.Lock()
	if c.inflight[k] == f {
		delete(c.inflight, k)
	}
	c.mu.Unlock()
}

func (c *Client) flightInvalidated(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return f.invalidated
}

// Invalidate marks every entry under prefix stale and returns how many cached
// entries matched. Fetches in flight under prefix store their result as stale
// and later callers start a new fetch instead of joining them.
func (c *Client) Invalidate(prefix pagination.Key) int {
	p := prefix.String()

	c.mu.Lock()
	for k, f := range c.inflight {
		if cache.MatchesPrefix(k, p) {
			f.invalidated = true
			c.group.Forget(k)
		}
	}
	c.mu.Unlock()

	n, err := c.cache.MarkStale(context.Background(), p)
	if err != nil {
		// stale marking failed midway, drop the entries so nothing reads as fresh
		c.logger.Warn("failed to mark entries stale, removing them",
			zap.String("resource", prefix.Resource()),
			zap.Error(err),
		)
		n, _ = c.cache.DeletePrefix(context.Background(), p)
	}
	c.metrics.Invalidated.WithLabelValues(prefix.Resource()).Add(float64(n))
	return n
}

// Remove drops every entry under prefix.
func (c *Client) Remove(prefix pagination.Key) int {
	n, err := c.cache.DeletePrefix(context.Background(), prefix.String())
	if err != nil {
		c.logger.Warn("failed to remove cache entries",
			zap.String("resource", prefix.Resource()),
			zap.Error(err),
		)
	}
	return n
}

// SetData stores value under key as fresh, e.g. the answer of a mutation.
func (c *Client) SetData(ctx context.Context, key pagination.Key, value any) error {
	return c.cache.Set(ctx, key.String(), value, false)
}

// PrefetchRequest is one query to warm.
type PrefetchRequest struct {
	Key     pagination.Key
	Fetch   FetchFunc
	Options Options
}

// Prefetch warms several keys concurrently and returns the first fetch error.
func (c *Client) Prefetch(ctx context.Context, reqs ...PrefetchRequest) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultPrefetchMax)
	for _, req := range reqs {
		g.Go(func() error {
			res := c.Query(gctx, req.Key, req.Fetch, req.Options)
			if res.Err != nil {
				return fmt.Errorf("prefetch %s: %w", req.Key.Resource(), res.Err)
			}
			return nil
		})
	}
	return g.Wait()
}

// TypedResult is Result with Data asserted to T.
type TypedResult[T any] struct {
	Data      T
	Err       error
	Stale     bool
	FromCache bool
	Disabled  bool
	UpdatedAt time.Time
}

// Untyped converts r back to a Result.
func (r TypedResult[T]) Untyped() Result {
	out := Result{
		Err:       r.Err,
		Stale:     r.Stale,
		FromCache: r.FromCache,
		Disabled:  r.Disabled,
		UpdatedAt: r.UpdatedAt,
	}
	if !r.Disabled && (r.Err == nil || r.Stale) {
		out.Data = r.Data
	}
	return out
}

// Get runs Query with a typed fetch function.
func Get[T any](ctx context.Context, c *Client, key pagination.Key, fetch func(context.Context) (T, error), opts Options) TypedResult[T] {
	res := c.Query(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts)

	out := TypedResult[T]{
		Err:       res.Err,
		Stale:     res.Stale,
		FromCache: res.FromCache,
		Disabled:  res.Disabled,
		UpdatedAt: res.UpdatedAt,
	}
	if res.Data != nil {
		data, ok := res.Data.(T)
		if !ok {
			out.Err = fmt.Errorf("cached value for %s has type %T", key.Resource(), res.Data)
			return out
		}
		out.Data = data
	}
	return out
}
