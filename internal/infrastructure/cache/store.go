// Package cache provides the in-process application cache: a bounded
// key-value store, per-domain named instances, deterministic key builders,
// and the invalidation router called from mutation paths.
package cache

import (
	"context"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metrics receives cache events for the named instance that produced them.
// The observability collector implements this; a nil Metrics is valid.
type Metrics interface {
	CacheHit(instance string)
	CacheMiss(instance string)
	CacheEviction(instance string, count int)
	CacheInvalidation(instance string, count int)
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	now     func() time.Time
	metrics Metrics
}

// WithClock overrides the time source. Tests use this to control
// entry timestamps and therefore eviction order.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// WithMetrics attaches a metrics sink to the store.
func WithMetrics(m Metrics) Option {
	return func(o *storeOptions) { o.metrics = m }
}

type entry[T any] struct {
	data      T
	timestamp time.Time
}

// Store is a fixed-capacity map from string key to timestamped value.
// Entries have no TTL: they live until evicted by capacity pressure or
// explicitly invalidated. When an insert would exceed capacity, the
// oldest tenth of the entries is evicted first.
//
// All operations are safe for concurrent use. GetOrSet does not coalesce
// concurrent misses on the same key; each miss invokes the factory.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	name    string
	maxSize int

	now     func() time.Time
	metrics Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewStore creates a bounded store for one cache domain. maxSize is fixed
// for the lifetime of the store and must be positive.
func NewStore[T any](name string, maxSize int, logger *zap.Logger, opts ...Option) *Store[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 100
	}

	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[T]{
		entries: make(map[string]entry[T]),
		name:    name,
		maxSize: maxSize,
		now:     o.now,
		metrics: o.metrics,
		logger:  logger,
		tracer:  otel.Tracer("commerce-backend/cache"),
	}
}

// Name returns the instance name the store was created with.
func (s *Store[T]) Name() string {
	return s.name
}

// Set stores a value under key, overwriting any existing entry. When the
// store is at capacity the oldest entries are evicted to make room.
func (s *Store[T]) Set(key string, data T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	s.entries[key] = entry[T]{data: data, timestamp: s.now()}
}

// Get returns the payload for key and whether it was present. Reads do
// not mutate the store.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		if s.metrics != nil {
			s.metrics.CacheMiss(s.name)
		}
		var zero T
		return zero, false
	}

	if s.metrics != nil {
		s.metrics.CacheHit(s.name)
	}
	return e.data, true
}

// Has reports whether key is present.
func (s *Store[T]) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.entries[key]
	return exists
}

// Delete removes one entry and reports whether it was present.
func (s *Store[T]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		return false
	}
	delete(s.entries, key)

	if s.metrics != nil {
		s.metrics.CacheInvalidation(s.name, 1)
	}
	return true
}

// DeleteFunc removes every entry whose key satisfies the predicate and
// returns the count removed. Zero matches is not an error.
func (s *Store[T]) DeleteFunc(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key := range s.entries {
		if match(key) {
			delete(s.entries, key)
			deleted++
		}
	}

	if deleted > 0 && s.metrics != nil {
		s.metrics.CacheInvalidation(s.name, deleted)
	}
	return deleted
}

// DeletePattern removes every entry whose key matches the pattern and
// returns the count removed.
func (s *Store[T]) DeletePattern(pattern *regexp.Regexp) int {
	return s.DeleteFunc(pattern.MatchString)
}

// Clear removes all entries unconditionally.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := len(s.entries)
	s.entries = make(map[string]entry[T])

	if cleared > 0 && s.metrics != nil {
		s.metrics.CacheInvalidation(s.name, cleared)
	}
}

// GetOrSet returns the cached value for key if present; otherwise it
// invokes factory, stores the result, and returns it. A factory error is
// returned to the caller and nothing is cached.
func (s *Store[T]) GetOrSet(ctx context.Context, key string, factory func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "cache.GetOrSet", trace.WithAttributes(
		attribute.String("cache.instance", s.name),
		attribute.String("cache.key", key),
	))
	defer span.End()

	if data, ok := s.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return data, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	data, err := factory(ctx)
	if err != nil {
		span.RecordError(err)
		var zero T
		return zero, err
	}

	s.Set(key, data)
	return data, nil
}

// Stats describes the current shape of a store.
type Stats struct {
	Instance         string `json:"instance"`
	TotalEntries     int    `json:"totalEntries"`
	MaxSize          int    `json:"maxSize"`
	OldestEntryAgeMs int64  `json:"oldestEntryAgeMs"`
	NewestEntryAgeMs int64  `json:"newestEntryAgeMs"`
}

// Stats returns introspection data without mutating the store.
func (s *Store[T]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Instance:     s.name,
		TotalEntries: len(s.entries),
		MaxSize:      s.maxSize,
	}

	now := s.now()
	first := true
	for _, e := range s.entries {
		age := now.Sub(e.timestamp).Milliseconds()
		if first {
			stats.OldestEntryAgeMs = age
			stats.NewestEntryAgeMs = age
			first = false
			continue
		}
		if age > stats.OldestEntryAgeMs {
			stats.OldestEntryAgeMs = age
		}
		if age < stats.NewestEntryAgeMs {
			stats.NewestEntryAgeMs = age
		}
	}

	return stats
}

// evictOldest removes the oldest tenth of the entries, ranked by
// timestamp ascending. Must be called with the write lock held.
func (s *Store[T]) evictOldest() {
	count := int(math.Ceil(float64(s.maxSize) * 0.1))
	if count < 1 {
		count = 1
	}
	if count > len(s.entries) {
		count = len(s.entries)
	}

	type aged struct {
		key       string
		timestamp time.Time
	}
	ranked := make([]aged, 0, len(s.entries))
	for key, e := range s.entries {
		ranked = append(ranked, aged{key: key, timestamp: e.timestamp})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].timestamp.Before(ranked[j].timestamp)
	})

	for _, victim := range ranked[:count] {
		delete(s.entries, victim.key)
	}

	if s.metrics != nil {
		s.metrics.CacheEviction(s.name, count)
	}
	s.logger.Debug("Evicted oldest cache entries",
		zap.String("instance", s.name),
		zap.Int("count", count),
	)
}
