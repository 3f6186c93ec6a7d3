package intercept

import "sync"

// bindingCache memoizes resolved bindings per shape key for the life of
// the process. The key space is bounded by the set of instrumented call
// sites, so entries are never evicted.
//
// Concurrency discipline is publish-once, read-freely: concurrent first
// callers for the same key serialize on that entry's Once so resolution
// runs exactly once, callers for different keys never contend, and every
// lookup after publication is a lock-free read.
type bindingCache struct {
	entries sync.Map // shapeKey -> *cacheEntry
}

type cacheEntry struct {
	once    sync.Once
	binding binding
}

// getOrResolve returns the binding for key, running resolve exactly once
// across all callers on first use. resolve must not return an error:
// resolution failure is expressed as a no-op binding.
func (c *bindingCache) getOrResolve(key shapeKey, resolve func() binding) *binding {
	v, ok := c.entries.Load(key)
	if !ok {
		v, _ = c.entries.LoadOrStore(key, &cacheEntry{})
	}
	entry := v.(*cacheEntry)
	entry.once.Do(func() {
		entry.binding = resolve()
	})
	return &entry.binding
}

// len reports the number of cached shapes. Used by tests.
func (c *bindingCache) len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
