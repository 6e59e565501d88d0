package render

import (
	"container/list"
	"sync"
)

type cacheKey struct {
	digest string
	page   int
	width  int
}

// cache is a small LRU of finished renders. It is filled by every render
// that completes, including superseded ones.
type cache struct {
	mu      sync.Mutex
	size    int
	order   *list.List
	entries map[cacheKey]*list.Element
}

type cacheEntry struct {
	key    cacheKey
	result Result
}

func newCache(size int) *cache {
	return &cache{
		size:    size,
		order:   list.New(),
		entries: make(map[cacheKey]*list.Element),
	}
}

func (c *cache) get(key cacheKey) (Result, bool) {
	if c.size <= 0 {
		return Result{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *cache) put(key cacheKey, result Result) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = result
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: result})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
