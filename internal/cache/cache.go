// Package cache is the client-side query cache behind the user listing. Pages are
// keyed by QueryKey; repeated keys are served from memory and at most one request
// per key is in flight at a time.
package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
	"github.com/charlesng35/userdash/pkg/logger"
	"github.com/charlesng35/userdash/pkg/metrics"
)

const (
	// DefaultRetryLimit is the number of automatic refetches an Error entry gets
	// before its error is surfaced as-is.
	DefaultRetryLimit = 1
	// DefaultGCTime is how long an unused entry is kept before Prune drops it.
	DefaultGCTime = 5 * time.Minute
	// DefaultFetchTimeout bounds a single fetch.
	DefaultFetchTimeout = 30 * time.Second
)

var errClosed = appErrors.New(appErrors.CodeInternal, "query cache closed", 0)

// Fetcher loads one page of users for a key.
type Fetcher interface {
	ListUsers(ctx context.Context, key models.QueryKey) (*models.PageResult, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key models.QueryKey) (*models.PageResult, error)

// ListUsers calls f.
func (f FetcherFunc) ListUsers(ctx context.Context, key models.QueryKey) (*models.PageResult, error) {
	return f(ctx, key)
}

// Option customises the Cache.
type Option func(*Cache)

// WithMaxEntries bounds the cache with least-recently-used eviction. Zero keeps
// the cache unbounded, which is the default for a single dashboard session.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.maxEntries = n
		}
	}
}

// WithStaleTime marks successful entries stale after d, so the next Fetch serves
// the cached page and refreshes it in the background. Zero keeps entries fresh
// for the life of the cache.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.staleTime = d
		}
	}
}

// WithGCTime sets how long an entry may go unread before Prune removes it.
// Zero disables pruning.
func WithGCTime(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.gcTime = d
		}
	}
}

// WithRetryLimit sets how many times an Error entry is refetched on re-request.
func WithRetryLimit(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.retryLimit = n
		}
	}
}

// WithFetchTimeout bounds each fetch. Zero removes the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides the clock used for timestamps, primarily for testing.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Stats summarises cache activity.
type Stats struct {
	Entries  int   `json:"entries"`
	Fetching int   `json:"fetching"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
}

// Cache maps QueryKeys to fetch state. Fetch never blocks on the network and
// never returns an error: failures are recorded as Error entries.
type Cache struct {
	fetcher      Fetcher
	clock        clockwork.Clock
	maxEntries   int
	staleTime    time.Duration
	gcTime       time.Duration
	retryLimit   int
	fetchTimeout time.Duration
	log          *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	flights singleflight.Group
	wg      sync.WaitGroup

	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64

	mu        sync.Mutex
	store     store
	epoch     uint64
	listeners map[int]func(Entry)
	nextID    int
	closed    bool
}

// New constructs a Cache backed by fetcher.
func New(fetcher Fetcher, opts ...Option) (*Cache, error) {
	if fetcher == nil {
		return nil, appErrors.NewValidationError("cache: fetcher is required")
	}

	c := &Cache{
		fetcher:      fetcher,
		clock:        clockwork.NewRealClock(),
		gcTime:       DefaultGCTime,
		retryLimit:   DefaultRetryLimit,
		fetchTimeout: DefaultFetchTimeout,
		listeners:    make(map[int]func(Entry)),
		log:          logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxEntries > 0 {
		s, err := newLRUStore(c.maxEntries)
		if err != nil {
			return nil, appErrors.Wrap(err, "cache: build lru store")
		}
		c.store = s
	} else {
		c.store = newMapStore()
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// Fetch returns the current state for key and starts a background fetch when
// the key is new, stale, or failed with retries left. A key that is already
// in flight is never fetched twice.
func (c *Cache) Fetch(key models.QueryKey) Entry {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return Entry{Key: key, Err: errClosed}
	}

	now := c.clock.Now()
	e, ok := c.store.get(key)
	start := false
	result := "hit"

	switch {
	case !ok:
		e = &entry{key: key, status: StatusPending, fetching: true}
		c.addLocked(key, e)
		start = true
		result = "miss"
	case e.fetching:
		result = "pending"
	case e.status == StatusSuccess:
		if c.staleLocked(e, now) {
			e.fetching = true
			start = true
			result = "stale"
		}
	case e.status == StatusError:
		if e.failures <= c.retryLimit {
			e.status = StatusPending
			e.fetching = true
			start = true
			result = "retry"
		} else {
			result = "exhausted"
		}
	}

	e.accessedAt = now
	snap := e.snapshot()
	if start {
		c.launchLocked(key)
	}
	c.mu.Unlock()

	metrics.CacheLookups.WithLabelValues(result).Inc()
	if result == "hit" {
		c.hits.Add(1)
		c.log.Debug("cache hit", zap.Stringer("key", key))
	} else {
		c.misses.Add(1)
	}

	return snap
}

// Refetch forces a new request for key unless one is already in flight. Cached
// data stays visible while the request runs.
func (c *Cache) Refetch(key models.QueryKey) Entry {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return Entry{Key: key, Err: errClosed}
	}

	e, ok := c.store.get(key)
	if !ok {
		e = &entry{key: key}
		c.addLocked(key, e)
	}
	if !e.fetching {
		if e.status != StatusSuccess {
			e.status = StatusPending
		}
		e.failures = 0
		e.fetching = true
		c.launchLocked(key)
	}
	e.accessedAt = c.clock.Now()
	snap := e.snapshot()
	c.mu.Unlock()

	return snap
}

// Peek returns the state for key without starting a fetch.
func (c *Cache) Peek(key models.QueryKey) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.peek(key)
	if !ok {
		return Entry{Key: key}, false
	}
	return e.snapshot(), true
}

// Subscribe registers fn to be called whenever a fetch settles. fn runs on the
// fetching goroutine and receives entries for every key, current or not.
func (c *Cache) Subscribe(fn func(Entry)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Invalidate drops settled entries for keys so the next Fetch goes to the
// network. Entries with a request in flight are left to settle.
func (c *Cache) Invalidate(keys ...models.QueryKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if e, ok := c.store.peek(key); ok && !e.fetching {
			c.store.remove(key)
			removed++
		}
	}
	c.recordEvictionsLocked("invalidate", removed)
	return removed
}

// Clear removes every entry. Results of requests started before Clear are
// discarded when they arrive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.len()
	c.store.purge()
	c.epoch++
	c.recordEvictionsLocked("clear", n)
}

// Prune drops entries that have not been read for the configured GC time and
// have no request in flight. It returns the number of entries removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gcTime <= 0 || c.closed {
		return 0
	}

	cutoff := c.clock.Now().Add(-c.gcTime)
	removed := 0
	for _, key := range c.store.keys() {
		e, ok := c.store.peek(key)
		if !ok || e.fetching {
			continue
		}
		if e.accessedAt.Before(cutoff) {
			c.store.remove(key)
			removed++
		}
	}
	c.recordEvictionsLocked("prune", removed)
	if removed > 0 {
		c.log.Debug("pruned cache entries", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.len()
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := c.store.len()
	fetching := 0
	for _, key := range c.store.keys() {
		if e, ok := c.store.peek(key); ok && e.fetching {
			fetching++
		}
	}
	c.mu.Unlock()

	return Stats{
		Entries:  entries,
		Fetching: fetching,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
	}
}

// Close cancels in-flight requests and waits for their goroutines to exit.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Cache) staleLocked(e *entry, now time.Time) bool {
	return c.staleTime > 0 && now.Sub(e.fetchedAt) >= c.staleTime
}

func (c *Cache) addLocked(key models.QueryKey, e *entry) {
	if c.store.add(key, e) {
		c.recordEvictionsLocked("lru", 1)
	}
	metrics.CacheEntries.Set(float64(c.store.len()))
}

func (c *Cache) recordEvictionsLocked(reason string, n int) {
	if n > 0 {
		metrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
	}
	metrics.CacheEntries.Set(float64(c.store.len()))
}

// launchLocked starts the request for key. The singleflight group joins a
// request that is still running for a key whose entry was evicted and then
// requested again.
func (c *Cache) launchLocked(key models.QueryKey) {
	epoch := c.epoch
	flightKey := strconv.FormatUint(epoch, 10) + "|" + key.String()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		v, err, _ := c.flights.Do(flightKey, func() (any, error) {
			ctx := c.ctx
			if c.fetchTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
				defer cancel()
			}
			c.fetches.Add(1)
			return c.fetcher.ListUsers(ctx, key)
		})

		page, _ := v.(*models.PageResult)
		if err == nil && page == nil {
			page = &models.PageResult{}
		}
		c.settle(key, epoch, page, err)
	}()
}

func (c *Cache) settle(key models.QueryKey, epoch uint64, page *models.PageResult, err error) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	e, ok := c.store.peek(key)
	if !ok {
		// Evicted while in flight; the result still lands so a revisit hits.
		e = &entry{key: key, accessedAt: c.clock.Now()}
		c.addLocked(key, e)
	}

	now := c.clock.Now()
	e.fetching = false
	e.fetchedAt = now

	if err == nil {
		e.status = StatusSuccess
		e.data = page
		e.err = nil
		e.failures = 0
	} else {
		e.failures++
		e.err = appErrors.FromError(err)
		if e.data == nil {
			e.status = StatusError
		}
	}

	snap := e.snapshot()
	listeners := make([]func(Entry), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	if err == nil {
		metrics.CacheFetches.WithLabelValues("success").Inc()
	} else {
		c.failures.Add(1)
		metrics.CacheFetches.WithLabelValues("error").Inc()
		c.log.Warn("fetch failed",
			zap.Stringer("key", key),
			zap.Int("failures", snap.Failures),
			zap.Error(err),
		)
	}

	for _, fn := range listeners {
		fn(snap)
	}
}
