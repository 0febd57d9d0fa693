package lru

import (
	"container/list"
	"iter"
)

type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Cache is a recency-ordered map. The least recently touched entry is kept at the front
// of the list, the most recent one at the back, so iterating the list from the front
// yields entries from the oldest to the newest.
//
// Cache isn't safe for concurrent use. Callers are expected to guard it on their own.
type Cache[K comparable, V any] struct {
	capacity int
	order    *list.List
	items    map[K]*list.Element
}

// New returns a new Cache. Capacity of zero or less means the cache is unbounded and
// entries leave it only via Pop, Remove or Clear.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element),
	}
}

// Set inserts or replaces the value, moving the key into the most recent position. If the
// capacity is exceeded, the least recently used entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	if el, found := c.items[key]; found {
		el.Value.(*Entry[K, V]).Value = value
		c.order.MoveToBack(el)
		return
	}

	c.items[key] = c.order.PushBack(&Entry[K, V]{Key: key, Value: value})

	if c.capacity > 0 && c.order.Len() > c.capacity {
		c.Pop()
	}
}

// Get returns the value and promotes the key into the most recent position.
func (c *Cache[K, V]) Get(key K) (value V, found bool) {
	el, found := c.items[key]
	if !found {
		return value, false
	}

	c.order.MoveToBack(el)
	return el.Value.(*Entry[K, V]).Value, true
}

// Peek returns the value without touching the recency order.
func (c *Cache[K, V]) Peek(key K) (value V, found bool) {
	el, found := c.items[key]
	if !found {
		return value, false
	}

	return el.Value.(*Entry[K, V]).Value, true
}

// Pop removes and returns the least recently used entry. The second return value is false
// if the cache is empty.
func (c *Cache[K, V]) Pop() (entry Entry[K, V], ok bool) {
	front := c.order.Front()
	if front == nil {
		return entry, false
	}

	entry = *c.order.Remove(front).(*Entry[K, V])
	delete(c.items, entry.Key)

	return entry, true
}

// Remove drops the key. Removing a non-existing key is a no-op.
func (c *Cache[K, V]) Remove(key K) {
	if el, found := c.items[key]; found {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

func (c *Cache[K, V]) Has(key K) bool {
	_, found := c.items[key]
	return found
}

func (c *Cache[K, V]) Size() int {
	return c.order.Len()
}

func (c *Cache[K, V]) Clear() {
	c.order.Init()
	clear(c.items)
}

// All iterates over the entries from the least to the most recently used one. The cache
// must not be modified during the iteration.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for el := c.order.Front(); el != nil; el = el.Next() {
			entry := el.Value.(*Entry[K, V])
			if !yield(entry.Key, entry.Value) {
				return
			}
		}
	}
}

// Keys returns a snapshot of all the keys in the recency order. Unlike All, the cache is
// free to be modified while walking the returned slice.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, c.order.Len())
	for key := range c.All() {
		keys = append(keys, key)
	}

	return keys
}
