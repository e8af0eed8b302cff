package atengine

import (
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// minCacheCapacity is the floor spec.md §4.3 requires regardless of what
// a caller asks for.
const minCacheCapacity = 8

// responseCache is a per-port cache of exact-request -> last-successful-
// payload, keyed on the raw command bytes. go-cache has no built-in
// capacity eviction, so a small FIFO index sits on top of it to enforce
// the capacity floor; ordering beyond "oldest goes first" is
// implementation-defined, matching spec.md §9 Open Question (a).
type responseCache struct {
	mu       sync.Mutex
	c        *gocache.Cache
	capacity int
	order    []string
}

func newResponseCache(capacity int) *responseCache {
	if capacity < minCacheCapacity {
		capacity = minCacheCapacity
	}
	return &responseCache{
		c:        gocache.New(gocache.NoExpiration, 0),
		capacity: capacity,
	}
}

func (rc *responseCache) get(key string) (string, bool) {
	v, ok := rc.c.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (rc *responseCache) put(key, value string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, found := rc.c.Get(key); !found {
		rc.order = append(rc.order, key)
		if len(rc.order) > rc.capacity {
			oldest := rc.order[0]
			rc.order = rc.order[1:]
			rc.c.Delete(oldest)
		}
	}
	rc.c.Set(key, value, gocache.NoExpiration)
}

func (rc *responseCache) invalidate() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.c.Flush()
	rc.order = nil
}
