package cache

import (
	"sync"

	"github.com/skipor/lrucached/log"
)

// Config configures a Cache.
type Config struct {
	// MaxSize is the maximum sum of |key|+|value| bytes across all
	// resident entries.
	MaxSize int64
}

// Cache is a size-bounded, recency-ordered key/value store. It is safe for
// concurrent use: every public operation is serialized behind one
// exclusive lock, held for the operation's entire duration and never held
// across I/O.
//
// Every successful read or write of an existing key moves that key to the
// tail (most-recently-used end) before any eviction triggered by the same
// operation is considered, so an operation never evicts the entry it just
// touched.
type Cache struct {
	mu  sync.Mutex
	log log.Logger

	maxSize  int64
	currSize int64

	table map[string]*node
	head  *node // sentinel; head.next is LRU
	tail  *node // sentinel; tail.prev is MRU
}

// New constructs a Cache bounded by conf.MaxSize.
func New(l log.Logger, conf Config) *Cache {
	if l == nil {
		l = log.NewNopLogger()
	}
	c := &Cache{
		log:     l,
		maxSize: conf.MaxSize,
		table:   make(map[string]*node),
	}
	c.head, c.tail = &node{}, &node{}
	link(c.head, c.tail)
	return c
}

// Put upserts key to value, evicting least-recently-used entries as
// needed. It fails without mutation if |key|+|value| exceeds MaxSize.
func (c *Cache) Put(key, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	newCost := cost(string(key), value)
	if newCost > c.maxSize {
		return false
	}
	k := string(key)
	if n, ok := c.table[k]; ok {
		c.log.Debugf("update %q", k)
		c.update(n, value)
		return true
	}
	c.log.Debugf("insert %q", k)
	c.insert(k, value, newCost)
	return true
}

// PutIfAbsent is Put, but fails without mutation if key is already
// present.
func (c *Cache) PutIfAbsent(key, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	newCost := cost(string(key), value)
	if newCost > c.maxSize {
		return false
	}
	k := string(key)
	if _, ok := c.table[k]; ok {
		return false
	}
	c.insert(k, value, newCost)
	return true
}

// Set updates an existing key's value. It fails without mutation if key is
// absent, or if |key|+|value| exceeds MaxSize.
func (c *Cache) Set(key, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	newCost := cost(string(key), value)
	if newCost > c.maxSize {
		return false
	}
	n, ok := c.table[string(key)]
	if !ok {
		return false
	}
	c.update(n, value)
	return true
}

// Get returns a copy of the value stored for key and moves the entry to
// the tail. It returns ok=false without mutation if key is absent.
func (c *Cache) Get(key []byte) (value []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	n, found := c.table[string(key)]
	if !found {
		return nil, false
	}
	detach(n)
	c.attachTail(n)
	return append([]byte(nil), n.value...), true
}

// Delete removes key if present, reporting whether it was.
func (c *Cache) Delete(key []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.checkInvariants()

	n, ok := c.table[string(key)]
	if !ok {
		return false
	}
	c.currSize -= cost(n.key, n.value)
	detach(n)
	delete(c.table, n.key)
	return true
}

// Len returns the number of resident entries. For tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Size returns the current byte size. For tests and diagnostics.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currSize
}

// Keys returns keys in recency order, head (LRU) to tail (MRU). For tests
// and diagnostics; it does not change recency.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.table))
	for n := c.head.next; n != c.tail; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// insert requires that key is absent from c.table.
func (c *Cache) insert(key string, value []byte, newCost int64) {
	c.evictUntilFits(newCost)
	n := &node{key: key, value: append([]byte(nil), value...)}
	c.table[key] = n
	c.attachTail(n)
	c.currSize += newCost
}

// update requires that n is currently linked into the list and indexed.
// It relocates n to the tail before evicting other entries, so n itself
// is never a candidate for eviction triggered by its own update.
func (c *Cache) update(n *node, value []byte) {
	oldCost := cost(n.key, n.value)
	newCost := cost(n.key, value)

	detach(n)
	c.attachTail(n)

	c.currSize -= oldCost
	c.evictUntilFits(newCost)
	c.currSize += newCost
	n.value = append([]byte(nil), value...)
}

func (c *Cache) attachTail(n *node) {
	link(c.tail.prev, n)
	link(n, c.tail)
}

// evictUntilFits evicts from the head until admitting addingCost more
// bytes would not exceed maxSize. It never evicts a node the caller has
// already relocated to the tail: once every other entry is gone,
// currSize is 0 and, since addingCost <= maxSize was checked by every
// caller, the loop condition is already false.
func (c *Cache) evictUntilFits(addingCost int64) {
	for c.currSize+addingCost > c.maxSize {
		c.evictHead()
	}
}

func (c *Cache) evictHead() {
	n := c.head.next
	c.log.Debugf("evict %q", n.key)
	c.currSize -= cost(n.key, n.value)
	detach(n)
	delete(c.table, n.key)
}
