package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Cache is a small TTL'd cache; the operator API uses it so status reads do
// not hit the chain RPC on every request.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
}

const DefaultCacheSize = 1024

type entry struct {
	value    interface{}
	deadline time.Time
}

type LocalCache struct {
	cache *lru.Cache
	ttl   time.Duration
}

func NewLocalCache(size int, ttl time.Duration) (Cache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache: cache,
		ttl:   ttl,
	}, nil
}

func (c *LocalCache) Get(key string) (interface{}, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if time.Now().After(e.deadline) {
		c.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *LocalCache) Set(key string, value interface{}) {
	c.cache.Add(key, entry{value: value, deadline: time.Now().Add(c.ttl)})
}
