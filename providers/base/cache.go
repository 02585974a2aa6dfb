package base

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// CompileCache keeps compiled patterns and templates by language and source
// text. Compiled values are immutable, so one entry can serve every caller.
type CompileCache struct {
	cache       sync.Map
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	maxAge      time.Duration
	cleanupOnce sync.Once
	closeOnce   sync.Once
	done        chan struct{}
	// exited is closed when the cleanup goroutine returns.
	exited chan struct{}
}

type cachedEntry struct {
	value     any
	timestamp time.Time
	hitCount  atomic.Int32
}

// GlobalCache is shared by every provider.
var GlobalCache = NewCompileCache(5 * time.Minute)

// NewCompileCache returns a cache whose entries expire after maxAge.
func NewCompileCache(maxAge time.Duration) *CompileCache {
	return &CompileCache{
		maxAge: maxAge,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Close stops the background cleanup. The cache stays usable but expired
// entries are then only dropped when looked up.
func (c *CompileCache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// GetOrCompile returns the cached value for key or stores what compile
// returns. Errors are not cached. The boolean reports a cache hit.
func (c *CompileCache) GetOrCompile(key string, compile func() (any, error)) (any, bool, error) {
	hash := c.hash(key)

	if cached, ok := c.cache.Load(hash); ok {
		entry := cached.(*cachedEntry)
		if time.Since(entry.timestamp) <= c.maxAge {
			c.hits.Add(1)
			entry.hitCount.Add(1)
			return entry.value, true, nil
		}
		c.cache.Delete(hash)
		c.evictions.Add(1)
	}

	c.misses.Add(1)
	value, err := compile()
	if err != nil {
		return nil, false, err
	}

	entry := &cachedEntry{value: value, timestamp: time.Now()}
	if existing, loaded := c.cache.LoadOrStore(hash, entry); loaded {
		return existing.(*cachedEntry).value, false, nil
	}

	c.cleanupOnce.Do(func() {
		go c.cleanupOldEntries()
	})
	return value, false, nil
}

func (c *CompileCache) hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c *CompileCache) cleanupOldEntries() {
	interval := c.maxAge
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(c.exited)

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.pruneExpired()
		}
	}
}

func (c *CompileCache) pruneExpired() {
	now := time.Now()
	c.cache.Range(func(key, value any) bool {
		if now.Sub(value.(*cachedEntry).timestamp) > c.maxAge {
			c.cache.Delete(key)
			c.evictions.Add(1)
		}
		return true
	})
}

// Stats returns cache statistics.
func (c *CompileCache) Stats() map[string]int64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	return map[string]int64{
		"hits":      hits,
		"misses":    misses,
		"evictions": c.evictions.Load(),
		"hit_rate":  hits * 100 / (hits + misses + 1),
	}
}
