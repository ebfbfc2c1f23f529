// Package clientcache provides a per-key cache facade for UI-facing
// consumers: fetch-on-miss, explicit invalidate-then-refetch, passive
// refresh, and cross-subscriber staleness notification. It is backed by
// an in-memory map plus an optional persisted Storage layer; invalidation
// here is local to one process and independent of the server-side cache.
package clientcache

import (
	"context"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultPrefix namespaces every key this package touches, in memory and
// in storage.
const DefaultPrefix = "cache"

type memoryRecord struct {
	data      any
	timestamp time.Time
}

type persistedRecord struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// listener is one subscription's pair of invalidation callbacks. Keeping
// the stale mark separate from the refetch lets notify apply staleness to
// every subscriber before the first refetch starts.
type listener struct {
	markStale func()
	refetch   func(context.Context)
}

// Cache owns the in-memory map, the persisted storage, and the listener
// registry shared by all subscriptions. Construct one per client session
// and pass it explicitly; there is no package-level instance.
type Cache struct {
	mu        sync.Mutex
	memory    map[string]memoryRecord
	listeners map[string]map[int]listener
	nextID    int

	storage Storage
	prefix  string
	logger  *zap.Logger
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *Cache) { c.prefix = prefix }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// New creates a client cache over the given storage. A nil storage
// disables persistence; a nil logger discards logs.
func New(storage Storage, logger *zap.Logger, opts ...CacheOption) *Cache {
	if storage == nil {
		storage = NopStorage{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		memory:    make(map[string]memoryRecord),
		listeners: make(map[string]map[int]listener),
		storage:   storage,
		prefix:    DefaultPrefix,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) fullKey(key string) string {
	return c.prefix + ":" + key
}

// writeEntry stores data in memory and, when persist is set, mirrors it
// into storage. Storage failures are logged and swallowed.
func (c *Cache) writeEntry(fullKey string, data any, persist bool) {
	timestamp := c.now()

	c.mu.Lock()
	c.memory[fullKey] = memoryRecord{data: data, timestamp: timestamp}
	c.mu.Unlock()

	if !persist {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry for storage",
			zap.String("key", fullKey), zap.Error(err))
		return
	}
	encoded, err := json.Marshal(persistedRecord{Data: raw, Timestamp: timestamp.UnixMilli()})
	if err != nil {
		c.logger.Warn("Failed to encode cache record for storage",
			zap.String("key", fullKey), zap.Error(err))
		return
	}
	if err := c.storage.Set(fullKey, string(encoded)); err != nil {
		c.logger.Warn("Failed to persist cache entry",
			zap.String("key", fullKey), zap.Error(err))
	}
}

// removeEntry deletes both the in-memory and the persisted copy.
func (c *Cache) removeEntry(fullKey string) {
	c.mu.Lock()
	delete(c.memory, fullKey)
	c.mu.Unlock()

	if err := c.storage.Remove(fullKey); err != nil {
		c.logger.Warn("Failed to remove persisted cache entry",
			zap.String("key", fullKey), zap.Error(err))
	}
}

// readStorage loads and decodes the persisted record for fullKey.
func (c *Cache) readStorage(fullKey string) (persistedRecord, bool) {
	encoded, found, err := c.storage.Get(fullKey)
	if err != nil {
		c.logger.Warn("Failed to read persisted cache entry",
			zap.String("key", fullKey), zap.Error(err))
		return persistedRecord{}, false
	}
	if !found {
		return persistedRecord{}, false
	}

	var record persistedRecord
	if err := json.Unmarshal([]byte(encoded), &record); err != nil {
		c.logger.Warn("Discarding corrupt persisted cache entry",
			zap.String("key", fullKey), zap.Error(err))
		return persistedRecord{}, false
	}
	return record, true
}

func (c *Cache) addListener(fullKey string, l listener) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.listeners[fullKey] == nil {
		c.listeners[fullKey] = make(map[int]listener)
	}
	c.listeners[fullKey][id] = l
	return id
}

// removeListener deregisters one listener and drops the key's registry
// entry once its set is empty. Cached data is untouched.
func (c *Cache) removeListener(fullKey string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.listeners[fullKey]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(c.listeners, fullKey)
	}
}

// notify invokes every listener registered for fullKey except excludeID.
// Every listener is marked stale before the first refetch runs, so no
// subscriber can observe refetched data while another still shows the old
// value un-flagged. Listeners run outside the cache lock.
func (c *Cache) notify(ctx context.Context, fullKey string, excludeID int) {
	c.mu.Lock()
	targets := make([]listener, 0, len(c.listeners[fullKey]))
	for id, l := range c.listeners[fullKey] {
		if id != excludeID {
			targets = append(targets, l)
		}
	}
	c.mu.Unlock()

	for _, l := range targets {
		l.markStale()
	}
	for _, l := range targets {
		l.refetch(ctx)
	}
}

// Stats summarizes both cache layers.
type Stats struct {
	MemoryEntries  int   `json:"memoryEntries"`
	StorageEntries int   `json:"storageEntries"`
	StorageBytes   int64 `json:"storageBytes"`
}

// Stats reports entry counts for memory and prefixed storage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	stats := Stats{MemoryEntries: len(c.memory)}
	c.mu.Unlock()

	keys, err := c.storage.Keys()
	if err != nil {
		c.logger.Warn("Failed to enumerate persisted cache keys", zap.Error(err))
		return stats
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, c.prefix+":") {
			continue
		}
		stats.StorageEntries++
		if value, found, err := c.storage.Get(key); err == nil && found {
			stats.StorageBytes += int64(len(value))
		}
	}
	return stats
}

// Preload seeds both cache layers for key without a fetch, e.g. from
// server-rendered initial data.
func Preload[T any](c *Cache, key string, data T) {
	c.writeEntry(c.fullKey(key), data, true)
}

// Options configures one subscription.
type Options struct {
	// NoPersist disables the storage mirror for this subscription.
	NoPersist bool
	// OnInvalidate runs after this subscription invalidates its key,
	// before the refetch starts.
	OnInvalidate func()
}

// Snapshot is a point-in-time view of a subscription's state.
type Snapshot[T any] struct {
	Data        T
	HasData     bool
	Loading     bool
	Err         error
	IsStale     bool
	LastFetched time.Time
}

// Subscription is one consumer's handle on a cached key. Subscribers of
// the same key are decoupled: any of them invalidating the key marks the
// others stale and triggers their refetch through the listener registry.
type Subscription[T any] struct {
	cache        *Cache
	fullKey      string
	fetcher      func(context.Context) (T, error)
	persist      bool
	onInvalidate func()
	listenerID   int

	mu          sync.Mutex
	data        T
	hasData     bool
	loading     bool
	err         error
	isStale     bool
	lastFetched time.Time
	closed      bool
}

// Subscribe registers a consumer for key. If either cache layer already
// holds an entry it hydrates synchronously with no fetch; otherwise the
// fetcher runs before Subscribe returns.
func Subscribe[T any](ctx context.Context, c *Cache, key string, fetcher func(context.Context) (T, error), opts *Options) *Subscription[T] {
	if opts == nil {
		opts = &Options{}
	}

	sub := &Subscription[T]{
		cache:        c,
		fullKey:      c.fullKey(key),
		fetcher:      fetcher,
		persist:      !opts.NoPersist,
		onInvalidate: opts.OnInvalidate,
	}
	sub.listenerID = c.addListener(sub.fullKey, listener{
		markStale: sub.markStale,
		refetch:   sub.fetch,
	})

	if sub.hydrate() {
		return sub
	}
	sub.fetch(ctx)
	return sub
}

// hydrate loads existing data from memory first, then storage, without
// any fetch. Reports whether an entry was found.
func (s *Subscription[T]) hydrate() bool {
	c := s.cache

	c.mu.Lock()
	record, ok := c.memory[s.fullKey]
	c.mu.Unlock()
	if ok {
		if data, typed := record.data.(T); typed {
			s.mu.Lock()
			s.data = data
			s.hasData = true
			s.lastFetched = record.timestamp
			s.mu.Unlock()
			return true
		}
	}

	if !s.persist {
		return false
	}
	record2, found := c.readStorage(s.fullKey)
	if !found {
		return false
	}
	var data T
	if err := json.Unmarshal(record2.Data, &data); err != nil {
		c.logger.Warn("Discarding undecodable persisted cache entry",
			zap.String("key", s.fullKey), zap.Error(err))
		return false
	}

	timestamp := time.UnixMilli(record2.Timestamp)
	c.mu.Lock()
	c.memory[s.fullKey] = memoryRecord{data: data, timestamp: timestamp}
	c.mu.Unlock()

	s.mu.Lock()
	s.data = data
	s.hasData = true
	s.lastFetched = timestamp
	s.mu.Unlock()
	return true
}

// fetch runs the fetcher and applies the result. On failure the prior
// data is retained and only the error is surfaced. A result arriving
// after Close is discarded.
func (s *Subscription[T]) fetch(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	data, err := s.fetcher(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		return
	}
	s.data = data
	s.hasData = true
	s.isStale = false
	s.lastFetched = s.cache.now()
	s.mu.Unlock()

	s.cache.writeEntry(s.fullKey, data, s.persist)
}

// markStale flags the subscription as holding possibly outdated data.
func (s *Subscription[T]) markStale() {
	s.mu.Lock()
	s.isStale = true
	s.mu.Unlock()
}

// Snapshot returns the subscription's current state.
func (s *Subscription[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot[T]{
		Data:        s.data,
		HasData:     s.hasData,
		Loading:     s.loading,
		Err:         s.err,
		IsStale:     s.isStale,
		LastFetched: s.lastFetched,
	}
}

// Invalidate removes the cached entry from both layers, marks this
// subscription stale, notifies every other subscriber of the key, then
// refetches. Deletion and notification always complete before the
// refetch starts, so no subscriber can observe new data before all have
// observed staleness.
func (s *Subscription[T]) Invalidate(ctx context.Context) {
	s.cache.removeEntry(s.fullKey)

	s.markStale()

	s.cache.notify(ctx, s.fullKey, s.listenerID)

	if s.onInvalidate != nil {
		s.onInvalidate()
	}

	s.fetch(ctx)
}

// Refresh refetches without clearing the cache first, so a transient
// failure cannot wipe out the last good value.
func (s *Subscription[T]) Refresh(ctx context.Context) {
	s.fetch(ctx)
}

// Close deregisters the subscription. Cached data stays; an in-flight
// fetch result is discarded.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cache.removeListener(s.fullKey, s.listenerID)
}
