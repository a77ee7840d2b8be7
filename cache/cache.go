package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/authcrawl/models"
)

// entry holds a cached render result with its creation timestamp.
type entry struct {
	result    *models.RenderResult
	createdAt time.Time
}

// Cache is a simple in-memory cache for render results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new Cache with the given maximum number of entries and
// entry lifetime. A background goroutine evicts expired entries until
// Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval(ttl))
	return c
}

// Key generates a cache key from the URL and the options that change
// the extracted content. Verbose and CacheMode do not.
func Key(url string, cfg models.EngineConfig) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(cfg.ExcludeExternalLinks)))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(cfg.ExcludeSocialMediaLinks)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached result if it exists and has not expired.
func (c *Cache) Get(key string) (*models.RenderResult, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores a result in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, result *models.RenderResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		result:    result,
		createdAt: time.Now(),
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine and drops all entries.
// It is safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.store = make(map[string]*entry)
		c.mu.Unlock()
	})
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if iv := ttl / 12; iv > time.Second {
		return iv
	}
	return time.Second
}

// cleanupLoop evicts expired entries every interval.
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
