package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/pricemonitor/logger"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client: client,
		log:    logger.ForCache().WithField("backend", "memcache"),
	}
}

// Ping checks that at least one memcached server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Cache get failed")
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Cache set failed")
	}
	return err
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
