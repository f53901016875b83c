package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache holds at most maxSize entries, dropping the least recently read
// one when full. Entries also lapse ttl after they were last written.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	byKey   map[string]*list.Element
	order   *list.List // front is most recently used
	now     func() time.Time
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		byKey:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.byKey[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if c.lapsed(e, c.now()) {
		c.drop(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set writes value under key and restarts its ttl.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.byKey[key]; ok {
		e := el.Value.(*entry[T])
		e.value, e.expires = value, expires
		c.order.MoveToFront(el)
		return
	}
	c.byKey[key] = c.order.PushFront(&entry[T]{key: key, value: value, expires: expires})
	for c.order.Len() > c.maxSize {
		c.drop(c.order.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[key]; ok {
		c.drop(el)
	}
}

// DeletePrefix drops every key starting with prefix and returns the count.
// Summary keys start with "<month>|", so one call clears a month.
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, el := range c.byKey {
		if strings.HasPrefix(key, prefix) {
			c.drop(el)
			n++
		}
	}
	return n
}

func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.byKey)
	c.order.Init()
}

// CleanExpired drops lapsed entries and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, el := range c.byKey {
		if c.lapsed(el.Value.(*entry[T]), now) {
			c.drop(el)
			n++
		}
	}
	return n
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

func (c *LRUCache[T]) lapsed(e *entry[T], now time.Time) bool {
	return now.After(e.expires)
}

func (c *LRUCache[T]) drop(el *list.Element) {
	delete(c.byKey, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}
