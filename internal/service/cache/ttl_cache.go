package cache

import (
	"sync"
	"time"
)

type ttlEntry struct {
	value    any
	expireAt time.Time
}

// TTLCache is a process-local cache with lazy expiry. Entries are
// dropped on the read that finds them stale; there is no sweeper.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]ttlEntry)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	switch {
	case !ok:
		return nil, false
	case !e.expireAt.IsZero() && time.Now().After(e.expireAt):
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl. Zero or negative ttl keeps it forever.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = ttlEntry{value: value, expireAt: expireAt}
	c.mu.Unlock()
}

var _ BytesCache = (*TTLCache)(nil)

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, isBytes := v.([]byte)
	if !isBytes {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}
