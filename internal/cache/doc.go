// Package cache provides a bounded LRU cache for GPU backend objects.
//
//	c := cache.New[uint64, *Pipeline](64, func(_ uint64, p *Pipeline) { p.destroy() })
//	p, err := c.GetOrCreate(key, build)
//
// The eviction callback runs for every entry leaving the cache, whether
// evicted by Add, replaced, removed, or dropped by Purge. Cache is safe for
// concurrent use; the callback runs with the cache lock held and must not
// call back into the cache.
package cache
