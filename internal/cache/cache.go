// Package cache holds short-lived in-memory copies of provider responses.
package cache

import (
	"strings"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/vidra-cli/vidra/metrics"
)

const (
	// SearchTTL bounds how long a search response is reused.
	SearchTTL = 5 * time.Minute
	// DetailTTL bounds how long a detail response is reused.
	DetailTTL = 10 * time.Minute

	maximumSize = 512
)

// TTL is a bounded cache whose entries expire a fixed time after they are written.
type TTL[V any] struct {
	name  string
	cache *otter.Cache[string, V]
}

// New creates a cache. name labels its metrics.
func New[V any](name string, ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		name: name,
		cache: otter.Must(&otter.Options[string, V]{
			MaximumSize:      maximumSize,
			ExpiryCalculator: otter.ExpiryWriting[string, V](ttl),
		}),
	}
}

// Get returns the live entry for key.
func (c *TTL[V]) Get(key string) (V, bool) {
	v, ok := c.cache.GetIfPresent(key)
	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(c.name, result).Inc()
	return v, ok
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	c.cache.Set(key, value)
}

// Invalidate drops key.
func (c *TTL[V]) Invalidate(key string) {
	c.cache.Invalidate(key)
}

// Key joins identifiers verbatim. Provider ids are case-sensitive.
func Key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// QueryKey folds case and spacing so equivalent search queries share an entry.
func QueryKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
