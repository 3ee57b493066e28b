// Package cache is a typed TTL cache.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache[K comparable, V any] struct {
	cache       *gocache.Cache
	keyToString func(K) string
}

type CacheConfig struct {
	TTL time.Duration
}

func NewCache[K comparable, V any](config CacheConfig, keyToString func(K) string) *Cache[K, V] {
	if config.TTL == 0 {
		config.TTL = 5 * time.Minute
	}

	return &Cache[K, V]{
		cache:       gocache.New(config.TTL, config.TTL*2),
		keyToString: keyToString,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	value, found := c.cache.Get(c.keyToString(key))
	if !found {
		var zero V
		return zero, false
	}

	typed, ok := value.(V)
	return typed, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.cache.SetDefault(c.keyToString(key), value)
}

// InvalidatePrefix drops every entry whose string key starts with prefix.
func (c *Cache[K, V]) InvalidatePrefix(prefix string) {
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

func (c *Cache[K, V]) Len() int {
	return c.cache.ItemCount()
}
