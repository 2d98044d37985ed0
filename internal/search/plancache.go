package search

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PlanEntry is one cached analysis+plan record.
type PlanEntry struct {
	Analysis     *Analysis `json:"analysis"`
	Plan         *Plan     `json:"plan"`
	HitCount     int64     `json:"hitCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// PlanCacheStats summarizes cache effectiveness.
type PlanCacheStats struct {
	Size      int     `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Evictions int64   `json:"evictions"`
}

// PlanCache is a size-bounded LRU with TTL for query plans. Keys are
// normalized queries so semantically identical queries coalesce. Plans hold
// only value data (no graph references), so the cache survives mutations.
type PlanCache struct {
	mu        sync.Mutex
	lru       *expirable.LRU[string, *PlanEntry]
	normalize bool
	hits      int64
	misses    int64
	// evictions is atomic: the TTL reaper fires the eviction callback from
	// its own goroutine.
	evictions atomic.Int64
}

// NewPlanCache creates a plan cache.
func NewPlanCache(size int, ttl time.Duration, normalize bool) *PlanCache {
	if size <= 0 {
		size = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	pc := &PlanCache{normalize: normalize}
	pc.lru = expirable.NewLRU[string, *PlanEntry](size, func(string, *PlanEntry) {
		pc.evictions.Add(1)
	}, ttl)
	return pc
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeQuery canonicalizes a query for cache keying: lower-cased,
// whitespace collapsed, boolean operators case-folded, trailing punctuation
// stripped. Idempotent.
func NormalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = whitespaceRe.ReplaceAllString(q, " ")
	q = strings.TrimRight(q, ".!?;, ")
	return q
}

func (pc *PlanCache) key(query string) string {
	if pc.normalize {
		return NormalizeQuery(query)
	}
	return query
}

// Get returns the cached entry for the query, bumping hit statistics.
func (pc *PlanCache) Get(query string) (*PlanEntry, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, ok := pc.lru.Get(pc.key(query))
	if !ok {
		pc.misses++
		return nil, false
	}
	pc.hits++
	entry.HitCount++
	entry.LastAccessed = time.Now()
	return entry, true
}

// Put stores an analysis and plan for the query.
func (pc *PlanCache) Put(query string, an *Analysis, plan *Plan) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	now := time.Now()
	pc.lru.Add(pc.key(query), &PlanEntry{
		Analysis:     an,
		Plan:         plan,
		CreatedAt:    now,
		LastAccessed: now,
	})
}

// InvalidatePattern removes entries whose normalized key matches the
// pattern (substring match).
func (pc *PlanCache) InvalidatePattern(pattern string) int {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	needle := NormalizeQuery(pattern)
	removed := 0
	for _, key := range pc.lru.Keys() {
		if strings.Contains(key, needle) {
			pc.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries.
func (pc *PlanCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.lru.Purge()
}

// Stats returns cache statistics.
func (pc *PlanCache) Stats() PlanCacheStats {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	stats := PlanCacheStats{
		Size:      pc.lru.Len(),
		Hits:      pc.hits,
		Misses:    pc.misses,
		Evictions: pc.evictions.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// exportedPlan is the serialized form of one cache entry.
type exportedPlan struct {
	Key   string     `json:"key"`
	Entry *PlanEntry `json:"entry"`
}

// Export serializes the cache contents.
func (pc *PlanCache) Export() ([]byte, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	var entries []exportedPlan
	for _, key := range pc.lru.Keys() {
		if entry, ok := pc.lru.Peek(key); ok {
			entries = append(entries, exportedPlan{Key: key, Entry: entry})
		}
	}
	return json.Marshal(entries)
}

// Import loads serialized entries, replacing duplicates.
func (pc *PlanCache) Import(data []byte) error {
	var entries []exportedPlan
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	for _, e := range entries {
		if e.Entry != nil {
			pc.lru.Add(e.Key, e.Entry)
		}
	}
	return nil
}
