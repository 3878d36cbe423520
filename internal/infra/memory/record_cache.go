package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// RecordCache keeps settlement envelopes in process with a TTL.
type RecordCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedRecord
}

type cachedRecord struct {
	envelope  []byte
	expiresAt time.Time
}

func NewRecordCache(ttl time.Duration) *RecordCache {
	return NewRecordCacheWithClock(ttl, time.Now)
}

// NewRecordCacheWithClock allows deterministic expiry in tests.
func NewRecordCacheWithClock(ttl time.Duration, clock func() time.Time) *RecordCache {
	return &RecordCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cachedRecord),
	}
}

func (c *RecordCache) Get(_ context.Context, digest string) ([]byte, bool, error) {
	now := c.clock()

	c.mu.RLock()
	entry, ok := c.entries[digest]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && !entry.expiresAt.After(now) {
		c.mu.Lock()
		if current, ok := c.entries[digest]; ok && !current.expiresAt.After(now) {
			delete(c.entries, digest)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.envelope, true, nil
}

func (c *RecordCache) Put(_ context.Context, digest string, envelope []byte) error {
	stored := make([]byte, len(envelope))
	copy(stored, envelope)

	c.mu.Lock()
	c.entries[digest] = cachedRecord{
		envelope:  stored,
		expiresAt: c.clock().Add(TTLWithJitter(c.ttl, digest)),
	}
	c.mu.Unlock()
	return nil
}

// TTLWithJitter adds up to 10% to ttl so entries written together do not expire together.
// The jitter is derived from key rather than a random source, keeping the process free of
// unseeded randomness.
func TTLWithJitter(ttl time.Duration, key string) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := uint64(ttl) / 10
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return ttl + time.Duration(h.Sum64()%(jitterMax+1))
}
