package providers

import "wakaproof/internal/structures"

// countingCache reports a hit or a miss for every lookup on the API cache.
type countingCache struct {
	next    CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *countingCache) Get(key string) ([]byte, bool) {
	val, hit := c.next.Get(key)
	if !hit {
		c.metrics.IncCacheMisses()
		return nil, false
	}
	c.metrics.IncCacheHits()
	return val, true
}

func (c *countingCache) Set(key string, value []byte) { c.next.Set(key, value) }

func (c *countingCache) Delete(keys ...string) { c.next.Delete(keys...) }

// NewInstrumentedCacheProvider returns the API response cache. A disabled cache
// is returned bare so that every request does not show up as a miss.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	cache := NewCacheProvider(conf, logger)
	if _, off := cache.(*noopCache); off {
		return cache
	}
	return &countingCache{next: cache, metrics: metrics}
}
