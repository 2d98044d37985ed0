package search

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Fuzzy cache bounds per the backpressure policy: a hard LRU cap with a
// mid-life cleanup that halves the cache when full.
const (
	fuzzyCacheCap     = 100
	fuzzyCacheCleanup = fuzzyCacheCap / 2
)

// cacheKey builds the canonical JSON key for a result cache entry. The
// graph generation is the single invalidation signal: it increases on every
// mutation, so keys from before a write can never be served after it.
func cacheKey(kind Kind, query string, f Filters, p Page, generation uint64) string {
	tags := make([]string, len(f.Tags))
	copy(tags, f.Tags)
	sort.Strings(tags)

	// Tags are keyed separately in sorted order so permutations coalesce.
	f.Tags = nil

	payload := struct {
		Kind       Kind     `json:"kind"`
		Query      string   `json:"query"`
		Tags       []string `json:"tags,omitempty"`
		Filters    Filters  `json:"filters"`
		Offset     int      `json:"offset"`
		Limit      int      `json:"limit"`
		Generation uint64   `json:"generation"`
	}{kind, query, tags, f, p.Offset, p.Limit, generation}

	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

// ResultCache is an LRU+TTL cache of result pages, one instance per
// retrieval kind. It is eventually consistent: mutation events clear it,
// and generation-stamped keys make stale hits impossible regardless.
type ResultCache struct {
	lru  *expirable.LRU[string, *Results]
	mu   sync.Mutex
	hits int64
	miss int64
}

// NewResultCache creates a cache with the given capacity and TTL.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = 500
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, *Results](size, nil, ttl),
	}
}

// Get returns the cached results for the key.
func (c *ResultCache) Get(key string) (*Results, bool) {
	if key == "" {
		return nil, false
	}
	res, ok := c.lru.Get(key)
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.miss++
	}
	c.mu.Unlock()
	return res, ok
}

// Put stores results for the key.
func (c *ResultCache) Put(key string, res *Results) {
	if key == "" {
		return
	}
	c.lru.Add(key, res)
}

// Clear drops all entries.
func (c *ResultCache) Clear() {
	c.lru.Purge()
}

// Stats returns hit/miss counters.
func (c *ResultCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.miss
}

// fuzzyResultCache is the fuzzy retriever's dedicated cache: LRU-capped at
// 100 entries, halved when full instead of evicting one-by-one, so bursts
// of distinct queries cannot thrash it.
type fuzzyResultCache struct {
	mu    sync.Mutex
	items map[string]*Results
	order []string // LRU order, least recent first
}

func newFuzzyResultCache() *fuzzyResultCache {
	return &fuzzyResultCache{items: make(map[string]*Results, fuzzyCacheCap)}
}

func (c *fuzzyResultCache) Get(key string) (*Results, bool) {
	if key == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.items[key]
	if ok {
		c.touch(key)
	}
	return res, ok
}

func (c *fuzzyResultCache) Put(key string, res *Results) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		c.items[key] = res
		c.touch(key)
		return
	}

	if len(c.items) >= fuzzyCacheCap {
		// Mid-life cleanup: drop the least-recent half in one pass.
		drop := c.order[:len(c.order)-fuzzyCacheCleanup]
		for _, k := range drop {
			delete(c.items, k)
		}
		c.order = append([]string(nil), c.order[len(c.order)-fuzzyCacheCleanup:]...)
	}

	c.items[key] = res
	c.order = append(c.order, key)
}

func (c *fuzzyResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Results, fuzzyCacheCap)
	c.order = c.order[:0]
}

func (c *fuzzyResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *fuzzyResultCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}
