package clientcache

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Invalidator is the escape hatch for code outside a subscription's
// lifecycle: it removes matching entries from both cache layers and
// notifies every subscriber of each removed key.
type Invalidator struct {
	cache *Cache
}

// NewInvalidator creates an invalidator over the given cache.
func NewInvalidator(c *Cache) *Invalidator {
	return &Invalidator{cache: c}
}

// InvalidatePattern removes and notifies every key matching the pattern,
// in memory and in storage. Returns the number of keys invalidated.
func (inv *Invalidator) InvalidatePattern(ctx context.Context, pattern *regexp.Regexp) int {
	return inv.invalidateMatching(ctx, pattern.MatchString)
}

// InvalidateSubstring removes and notifies every key containing substr.
func (inv *Invalidator) InvalidateSubstring(ctx context.Context, substr string) int {
	return inv.invalidateMatching(ctx, func(key string) bool {
		return strings.Contains(key, substr)
	})
}

func (inv *Invalidator) invalidateMatching(ctx context.Context, match func(string) bool) int {
	c := inv.cache

	seen := make(map[string]bool)

	c.mu.Lock()
	for key := range c.memory {
		if match(key) {
			seen[key] = true
		}
	}
	c.mu.Unlock()

	storageKeys, err := c.storage.Keys()
	if err != nil {
		c.logger.Warn("Failed to enumerate persisted cache keys", zap.Error(err))
	}
	for _, key := range storageKeys {
		// The storage may be shared; only cache-prefixed entries are ours
		// to remove.
		if !strings.HasPrefix(key, c.prefix+":") {
			continue
		}
		if match(key) {
			seen[key] = true
		}
	}

	for key := range seen {
		c.removeEntry(key)
		c.notify(ctx, key, 0)
	}
	return len(seen)
}

// InvalidateAll wipes every cache-prefixed entry in both layers and
// notifies every registered listener.
func (inv *Invalidator) InvalidateAll(ctx context.Context) {
	c := inv.cache

	c.mu.Lock()
	c.memory = make(map[string]memoryRecord)
	listenerKeys := make([]string, 0, len(c.listeners))
	for key := range c.listeners {
		listenerKeys = append(listenerKeys, key)
	}
	c.mu.Unlock()

	storageKeys, err := c.storage.Keys()
	if err != nil {
		c.logger.Warn("Failed to enumerate persisted cache keys", zap.Error(err))
	}
	for _, key := range storageKeys {
		if !strings.HasPrefix(key, c.prefix+":") {
			continue
		}
		if err := c.storage.Remove(key); err != nil {
			c.logger.Warn("Failed to remove persisted cache entry",
				zap.String("key", key), zap.Error(err))
		}
	}

	for _, key := range listenerKeys {
		c.notify(ctx, key, 0)
	}
}
