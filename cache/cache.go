// Package cache provides a write-back object cache over a key→JSON store.
//
// Objects are loaded into memory on first access and kept there for the
// lifetime of the cache. Mutations mark the object dirty; a background
// worker flushes dirty objects to the backing store on a timer, and
// Shutdown performs a final flush. The system object tracks the numeric
// counter used to allocate new object IDs.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creditkit/creditkit/store"
)

// SystemID is the reserved ID of the system object holding engine state.
const SystemID = "system"

// firstObjectNumber is the counter value assigned to the first created
// object. Lower numbers are reserved.
const firstObjectNumber = 1024

// counterKey is the system object property holding the next object number.
const counterKey = "currentNumber"

// DefaultFlushInterval is how often dirty objects are written back when no
// interval is configured.
const DefaultFlushInterval = 10 * time.Second

// Cache is a write-back object cache. All methods are safe for concurrent
// use. Objects handed out by Load and friends are the cached instances:
// callers must route mutations through SetProperty or UpdateObject so the
// object is marked dirty.
type Cache struct {
	store  store.Store
	logger *slog.Logger

	mu      sync.Mutex
	objects map[string]store.Object
	dirty   map[string]struct{}

	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
	started       bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithFlushInterval sets the write-back interval.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.flushInterval = d
		}
	}
}

// New creates a Cache over the given store.
func New(s store.Store, opts ...Option) *Cache {
	c := &Cache{
		store:         s,
		logger:        slog.Default(),
		objects:       make(map[string]store.Object),
		dirty:         make(map[string]struct{}),
		flushInterval: DefaultFlushInterval,
		stopChan:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Init initializes the backing store, loads or creates the system object,
// and starts the flush worker.
func (c *Cache) Init(ctx context.Context) error {
	if err := c.store.Init(ctx); err != nil {
		return err
	}

	sys, err := c.load(ctx, SystemID, true)
	if err != nil {
		return err
	}
	if sys == nil {
		sys = store.Object{counterKey: float64(firstObjectNumber)}
		c.mu.Lock()
		c.objects[SystemID] = sys
		c.dirty[SystemID] = struct{}{}
		c.mu.Unlock()
		if err := c.Flush(ctx); err != nil {
			return fmt.Errorf("cache: persist system object: %w", err)
		}
	}

	c.mu.Lock()
	if !c.started {
		c.started = true
		c.wg.Add(1)
		go c.flushWorker()
	}
	c.mu.Unlock()

	c.logger.Info("cache started", "flush_interval", c.flushInterval)
	return nil
}

// Load returns the object with the given ID, reading through to the store
// on a cache miss. Returns store.ErrNotFound when the object does not exist.
func (c *Cache) Load(ctx context.Context, id string) (store.Object, error) {
	obj, err := c.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Exists reports whether an object with the given ID exists, in the cache
// or in the backing store.
func (c *Cache) Exists(ctx context.Context, id string) (bool, error) {
	obj, err := c.load(ctx, id, true)
	if err != nil {
		return false, err
	}
	return obj != nil, nil
}

// Create inserts a new object. Returns store.ErrAlreadyExists when an
// object with the ID is already cached or stored.
func (c *Cache) Create(ctx context.Context, id string, obj store.Object) error {
	if err := store.CheckID(id); err != nil {
		return err
	}

	existing, err := c.load(ctx, id, true)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, id)
	}

	if obj == nil {
		obj = store.Object{}
	}

	c.mu.Lock()
	c.objects[id] = obj
	c.dirty[id] = struct{}{}
	c.mu.Unlock()

	return nil
}

// GetProperty returns a single property of an object. The second return
// value reports whether the property is present.
func (c *Cache) GetProperty(ctx context.Context, id, key string) (any, bool, error) {
	obj, err := c.load(ctx, id, false)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	v, ok := obj[key]
	c.mu.Unlock()
	return v, ok, nil
}

// SetProperty sets a single property of an object and marks it dirty.
func (c *Cache) SetProperty(ctx context.Context, id, key string, value any) error {
	obj, err := c.load(ctx, id, false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	obj[key] = value
	c.dirty[id] = struct{}{}
	c.mu.Unlock()
	return nil
}

// UpdateObject applies fn to the object under the cache lock and marks the
// object dirty. fn must not block or call back into the cache.
func (c *Cache) UpdateObject(ctx context.Context, id string, fn func(store.Object)) error {
	obj, err := c.load(ctx, id, false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	fn(obj)
	c.dirty[id] = struct{}{}
	c.mu.Unlock()
	return nil
}

// NextObjectID allocates the next object number from the system counter.
func (c *Cache) NextObjectID(ctx context.Context) (uint64, error) {
	sys, err := c.load(ctx, SystemID, false)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := firstObjectNumber
	if v, ok := sys[counterKey]; ok {
		switch t := v.(type) {
		case float64:
			n = int(t)
		case int:
			n = t
		case int64:
			n = int(t)
		}
	}
	sys[counterKey] = float64(n + 1)
	c.dirty[SystemID] = struct{}{}
	return uint64(n), nil
}

// NextTypeOrdinal increments the per-type creation counter on the system
// object and returns the new ordinal. The first object of a type gets
// ordinal 1. The counter persists with the system object, so ordinals stay
// monotonic across restarts.
func (c *Cache) NextTypeOrdinal(ctx context.Context, typ string) (uint64, error) {
	sys, err := c.load(ctx, SystemID, false)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := typ + "Count"
	n := 0
	if v, ok := sys[key]; ok {
		switch t := v.(type) {
		case float64:
			n = int(t)
		case int:
			n = t
		case int64:
			n = int(t)
		}
	}
	n++
	sys[key] = float64(n)
	c.dirty[SystemID] = struct{}{}
	return uint64(n), nil
}

// Flush writes all dirty objects to the backing store. Objects that fail
// to persist stay dirty and are retried on the next flush.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.dirty) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := make(map[string]store.Object, len(c.dirty))
	for id := range c.dirty {
		batch[id] = store.Clone(c.objects[id])
	}
	c.dirty = make(map[string]struct{})
	c.mu.Unlock()

	if bs, ok := c.store.(store.BatchStore); ok {
		if err := bs.StoreBatch(ctx, batch); err != nil {
			c.remarkDirty(batch)
			return fmt.Errorf("cache: flush batch: %w", err)
		}
		return nil
	}

	var failed map[string]store.Object
	var firstErr error
	for id, obj := range batch {
		if err := c.store.StoreObject(ctx, id, obj); err != nil {
			if failed == nil {
				failed = make(map[string]store.Object)
			}
			failed[id] = obj
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		c.remarkDirty(failed)
		return fmt.Errorf("cache: flush: %w", firstErr)
	}
	return nil
}

// remarkDirty puts failed objects back on the dirty set unless they were
// modified again since the snapshot.
func (c *Cache) remarkDirty(batch map[string]store.Object) {
	c.mu.Lock()
	for id := range batch {
		c.dirty[id] = struct{}{}
	}
	c.mu.Unlock()
}

// DirtyCount returns the number of objects awaiting write-back.
func (c *Cache) DirtyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Shutdown stops the flush worker, performs a final flush, and closes the
// backing store.
func (c *Cache) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.started = false
		close(c.stopChan)
	}
	c.mu.Unlock()
	c.wg.Wait()

	if err := c.Flush(ctx); err != nil {
		c.logger.Error("final flush failed", "error", err)
		return err
	}
	return c.store.Close()
}

// flushWorker writes dirty objects back on a timer.
func (c *Cache) flushWorker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return

		case <-ticker.C:
			if err := c.Flush(context.Background()); err != nil {
				c.logger.Error("write-back flush failed", "error", err)
			}
		}
	}
}

// load returns the cached object or reads it through from the store.
func (c *Cache) load(ctx context.Context, id string, allowMissing bool) (store.Object, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if obj, ok := c.objects[id]; ok {
		c.mu.Unlock()
		return obj, nil
	}
	c.mu.Unlock()

	obj, err := c.store.LoadObject(ctx, id, allowMissing)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// another goroutine may have loaded it in the meantime
	if cached, ok := c.objects[id]; ok {
		return cached, nil
	}
	c.objects[id] = obj
	return obj, nil
}
