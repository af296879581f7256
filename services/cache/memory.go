package cache

import (
	"sync"
	"time"

	"sjsage522/pricemonitor/logger"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process CacheService used when no memcached is configured
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	log     *logger.Logger
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		log:     logger.ForCache().WithField("backend", "memory"),
	}
}

// Get returns the value for key unless it has expired
func (m *MemoryCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		m.log.Debug().Str("key", key).Msg("Cache entry expired")
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores value under key. A non-positive expiration never expires.
func (m *MemoryCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if expiration > 0 {
		entry.expiresAt = m.now().Add(expiration)
	}
	m.entries[key] = entry
	return nil
}

// Delete removes key
func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
