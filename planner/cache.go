package planner

import (
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of query shapes cached per collection.
const DefaultCacheSize = 256

type cachedChoice struct {
	version uint64
	stage   string
	index   string
}

// Cache remembers the access path chosen for a query shape. Entries record
// the catalog version they were planned against and are ignored once the
// catalog changes.
type Cache struct {
	lru    *lru.Cache[uint64, cachedChoice]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a plan cache holding up to size shapes. size <= 0 uses
// DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[uint64, cachedChoice](size)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &Cache{lru: c}
}

// shapeKey hashes everything that influences the choice of access path.
func shapeKey(req Request) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(req.Filter.Shape())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(req.Projection.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.Itoa(int(req.dir())))
	return d.Sum64()
}

func (c *Cache) get(key, version uint64) (cachedChoice, bool) {
	if c == nil {
		return cachedChoice{}, false
	}
	ch, ok := c.lru.Get(key)
	if !ok || ch.version != version {
		c.misses.Add(1)
		return cachedChoice{}, false
	}
	c.hits.Add(1)
	return ch, true
}

func (c *Cache) put(key uint64, ch cachedChoice) {
	if c == nil {
		return
	}
	c.lru.Add(key, ch)
}

// Purge drops every cached shape.
func (c *Cache) Purge() {
	if c != nil {
		c.lru.Purge()
	}
}

// Len returns the number of cached shapes.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
