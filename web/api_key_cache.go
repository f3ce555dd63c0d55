package web

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cachedApiKey struct {
	key     string
	expires time.Time
}

type apiKeyCache struct {
	lookup ApiKeyLookup
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu   sync.RWMutex
	keys map[string]cachedApiKey
}

// CacheApiKeys wraps lookup so each queue's key is fetched at most once per ttl.
// Concurrent misses for the same queue share one lookup. Failed lookups are not
// cached. A non-positive ttl returns lookup unchanged.
func CacheApiKeys(lookup ApiKeyLookup, ttl time.Duration) ApiKeyLookup {
	if lookup == nil || ttl <= 0 {
		return lookup
	}
	return newApiKeyCache(lookup, ttl, time.Now).get
}

func newApiKeyCache(lookup ApiKeyLookup, ttl time.Duration, now func() time.Time) *apiKeyCache {
	return &apiKeyCache{
		lookup: lookup,
		ttl:    ttl,
		now:    now,
		keys:   make(map[string]cachedApiKey),
	}
}

func (c *apiKeyCache) get(ctx context.Context, queueName string) (string, error) {
	c.mu.RLock()
	entry, ok := c.keys[queueName]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.key, nil
	}

	v, err, _ := c.group.Do(queueName, func() (any, error) {
		key, err := c.lookup(ctx, queueName)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.keys[queueName] = cachedApiKey{key: key, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
