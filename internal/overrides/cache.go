// internal/overrides/cache.go
package overrides

import (
	"container/list"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

/*
 * Read-through cache for override tables.
 *
 * Override maps (per-user exceptions, per-protocol defaults) live in the
 * surrounding application's store and change rarely. The evaluator is a pure
 * function of its context, so caching happens here, in a value the caller
 * owns and passes around, never in package state.
 *
 * Behavior:
 *   - Get loads through Source on miss or expiry; concurrent misses for one
 *     key share a single load (singleflight)
 *   - entries expire after TTL; the least recently used entry is evicted
 *     once MaxEntries is exceeded
 *   - Invalidate / InvalidateAll drop entries; a load that started before an
 *     invalidation is returned only to callers that joined it before the
 *     invalidation, and is not stored
 *   - returned maps are copies; callers may mutate them freely
 *
 * Load errors are not cached.
 */

// Source loads the override map for a key (a user id or protocol id).
// A key with no overrides returns an empty or nil map, not an error.
type Source interface {
	Load(ctx context.Context, key string) (map[string]any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key string) (map[string]any, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context, key string) (map[string]any, error) {
	return f(ctx, key)
}

// Config holds cache limits.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// DefaultConfig returns the default cache limits.
func DefaultConfig() Config {
	return Config{
		TTL:        5 * time.Minute,
		MaxEntries: 10000,
	}
}

type entry struct {
	key       string
	values    map[string]any
	expiresAt time.Time
}

// Cache is a bounded, expiring read-through cache over a Source.
type Cache struct {
	source Source
	cfg    Config
	now    func() time.Time
	logger *zap.Logger

	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	generation uint64

	loads singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a cache over source. Non-positive limits fall back to
// DefaultConfig.
func New(source Source, cfg Config, opts ...Option) *Cache {
	defaults := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaults.MaxEntries
	}

	c := &Cache{
		source:  source,
		cfg:     cfg,
		now:     time.Now,
		logger:  zap.NewNop(),
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the override map for key, loading it on miss.
func (c *Cache) Get(ctx context.Context, key string) (map[string]any, error) {
	if values, ok := c.lookup(key); ok {
		return values, nil
	}

	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	// Flights are per generation: a Get that starts after an invalidation
	// never joins a load that started before it.
	flight := strconv.FormatUint(generation, 10) + "/" + key
	v, err, shared := c.loads.Do(flight, func() (any, error) {
		values, err := c.source.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.store(key, values, generation)
		return values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load overrides for %q: %w", key, err)
	}

	c.logger.Debug("overrides loaded", zap.String("key", key), zap.Bool("shared", shared))
	return copyMap(v.(map[string]any)), nil
}

// lookup returns a fresh cached copy, dropping the entry when expired.
func (c *Cache) lookup(key string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.remove(elem)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return copyMap(e.values), true
}

// store inserts a loaded map unless an invalidation happened since the load
// started.
func (c *Cache) store(key string, values map[string]any, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	e := &entry{key: key, values: copyMap(values), expiresAt: c.now().Add(c.cfg.TTL)}
	if elem, ok := c.entries[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}
	c.entries[key] = c.lru.PushFront(e)

	for c.lru.Len() > c.cfg.MaxEntries {
		c.remove(c.lru.Back())
	}
}

func (c *Cache) remove(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*entry).key)
}

// Invalidate drops the cached map for key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
}

// InvalidateAll drops every cached map.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
