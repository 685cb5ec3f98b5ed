package blobcache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCache keeps blobs in process memory. Used in tests and when Redis
// is unreachable at startup.
type MemoryCache struct {
	cache *cache.Cache
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: cache.New(DefaultTTL, time.Minute),
	}
}

func (m *MemoryCache) Put(_ context.Context, ref Ref, data []byte, ttl time.Duration) error {
	if ref == "" {
		return ErrEmptyRef
	}
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.cache.Set(string(ref), buf, ttl)
	return nil
}

func (m *MemoryCache) Get(_ context.Context, ref Ref) ([]byte, bool, error) {
	if x, found := m.cache.Get(string(ref)); found {
		return x.([]byte), true, nil
	}
	return nil, false, nil
}

func (m *MemoryCache) Delete(_ context.Context, refs ...Ref) error {
	for _, ref := range refs {
		m.cache.Delete(string(ref))
	}
	return nil
}

func (m *MemoryCache) Len() int {
	return m.cache.ItemCount()
}
