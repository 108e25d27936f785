package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    interface{}
	expireAt time.Time
}

func (m *memoryItem) expired() bool { return time.Now().After(m.expireAt) }

// MemoryCache is an in-process Service with LRU eviction and periodic
// expiry sweeps. It backs the universe cache when redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*memoryItem
	access  map[string]time.Time
	maxSize int
	ticker  *time.Ticker
}

var _ Service = (*MemoryCache)(nil)

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		access:  make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		ticker:  time.NewTicker(cfg.CleanupInterval),
	}
	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}

	expireAt := time.Now().Add(expiration)
	if expiration <= 0 {
		expireAt = time.Now().Add(7 * 24 * time.Hour)
	}

	mc.data[key] = &memoryItem{value: value, expireAt: expireAt}
	mc.access[key] = time.Now()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, ok := mc.data[key]
	if !ok || item.expired() {
		if ok {
			delete(mc.data, key)
			delete(mc.access, key)
		}
		return ErrCacheMiss
	}
	mc.access[key] = time.Now()

	if strPtr, ok := dest.(*string); ok {
		if str, ok := item.value.(string); ok {
			*strPtr = str
			return nil
		}
		return ErrCacheMiss
	}
	if ip, ok := dest.(*interface{}); ok {
		*ip = item.value
		return nil
	}
	return ErrCacheMiss
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.access, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for _, key := range keys {
		if item, ok := mc.data[key]; ok && !item.expired() {
			return true, nil
		}
	}
	return false, nil
}

// evictLRU drops the least recently touched key. Caller holds the lock.
func (mc *MemoryCache) evictLRU() {
	if len(mc.data) == 0 {
		return
	}
	var oldestKey string
	oldestTime := time.Now()
	for key, at := range mc.access {
		if at.Before(oldestTime) {
			oldestTime = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
		delete(mc.access, oldestKey)
	}
}

func (mc *MemoryCache) cleanupExpired() {
	for range mc.ticker.C {
		mc.mu.Lock()
		now := time.Now()
		for key, item := range mc.data {
			if now.After(item.expireAt) {
				delete(mc.data, key)
				delete(mc.access, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the expiry sweeper.
func (mc *MemoryCache) Close() error {
	if mc.ticker != nil {
		mc.ticker.Stop()
	}
	return nil
}
