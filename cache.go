package statsig

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type cacheKey struct {
	kind     EntityKind
	name     string
	userHash string
}

func newCacheKey(kind EntityKind, name, userHash string) cacheKey {
	return cacheKey{kind: kind, name: name, userHash: userHash}
}

type cachedEvaluation struct {
	result     Evaluation
	insertedAt time.Time
}

// evaluationCache is a capacity-bounded LRU of evaluations with a TTL
// measured from insertion. Expiry is checked on read, eviction happens on insert.
// mu makes the expiry check and removal a single step.
type evaluationCache struct {
	mu      sync.Mutex
	entries *simplelru.LRU[cacheKey, cachedEvaluation]
	ttl     time.Duration
	now     func() time.Time
	metrics *CacheMetrics
}

func newEvaluationCache(capacity int, ttl time.Duration, now func() time.Time, metrics *CacheMetrics) (*evaluationCache, error) {
	entries, lruErr := simplelru.NewLRU[cacheKey, cachedEvaluation](capacity, nil)
	if lruErr != nil {
		return nil, wrapError(KindConfiguration, lruErr)
	}
	return &evaluationCache{
		entries: entries,
		ttl:     ttl,
		now:     now,
		metrics: metrics,
	}, nil
}

// lookup returns the entry for key if present and not older than the TTL.
// Expired entries are dropped without counting an eviction.
func (c *evaluationCache) lookup(key cacheKey) (cachedEvaluation, bool) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries.Peek(key)
	expired := ok && now.Sub(entry.insertedAt) > c.ttl
	switch {
	case expired:
		c.entries.Remove(key)
	case ok:
		// Get moves the entry to the front.
		c.entries.Get(key)
	}
	c.mu.Unlock()

	if !ok || expired {
		c.metrics.recordMiss()
		return cachedEvaluation{}, false
	}
	c.metrics.recordHit()
	return entry, true
}

func (c *evaluationCache) insert(key cacheKey, result Evaluation) {
	entry := cachedEvaluation{result: result, insertedAt: c.now()}

	c.mu.Lock()
	evicted := c.entries.Add(key, entry)
	c.mu.Unlock()

	c.metrics.recordInsert()
	if evicted {
		c.metrics.recordEviction()
	}
}

func (c *evaluationCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
