package pipeline

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// CacheKeyRunes is the length of the text prefix used as cache key.
// Texts sharing this prefix share one cache entry.
const CacheKeyRunes = 512

// EmbeddingCache is a bounded, expiring store of embeddings keyed by text prefix.
// It is safe for concurrent use. Stored vectors are never handed out directly.
type EmbeddingCache struct {
	items      *cache.Cache
	maxEntries int
	mu         sync.Mutex
}

// NewEmbeddingCache creates a cache whose entries expire after ttl
// and which holds at most maxEntries entries.
func NewEmbeddingCache(ttl time.Duration, maxEntries int) *EmbeddingCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &EmbeddingCache{
		items:      cache.New(ttl, ttl),
		maxEntries: maxEntries,
	}
}

// CacheKey returns the cache key of text: its first CacheKeyRunes runes, untrimmed.
func CacheKey(text string) string {
	count := 0
	for i := range text {
		if count == CacheKeyRunes {
			return text[:i]
		}
		count++
	}
	return text
}

// Get returns a copy of the cached vector for key.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	vector, ok := v.([]float32)
	if !ok {
		return nil, false
	}
	return cloneVector(vector), true
}

// Set stores a copy of vector under key. When the cache is full, expired
// entries are purged first and then the entry closest to expiry is evicted.
func (c *EmbeddingCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items.Get(key); !exists && c.items.ItemCount() >= c.maxEntries {
		c.items.DeleteExpired()
		if c.items.ItemCount() >= c.maxEntries {
			c.evictOldest()
		}
	}

	c.items.SetDefault(key, cloneVector(vector))
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *EmbeddingCache) Len() int {
	return c.items.ItemCount()
}

// Flush removes all entries.
func (c *EmbeddingCache) Flush() {
	c.items.Flush()
}

func (c *EmbeddingCache) evictOldest() {
	var oldestKey string
	var oldest int64
	found := false
	for k, item := range c.items.Items() {
		if !found || item.Expiration < oldest {
			oldestKey = k
			oldest = item.Expiration
			found = true
		}
	}
	if found {
		c.items.Delete(oldestKey)
	}
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
