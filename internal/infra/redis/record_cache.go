package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"openquest-settlement/internal/infra/memory"
)

// RecordCache keeps settlement envelopes in Redis so replicas share settled results.
// Envelopes are stored as: SET settlement:record:{digest} {envelope} EX ttl+jitter
type RecordCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecordCache(client *redis.Client, ttl time.Duration) *RecordCache {
	return &RecordCache{client: client, ttl: ttl}
}

func (c *RecordCache) Get(ctx context.Context, digest string) ([]byte, bool, error) {
	envelope, err := c.client.Get(ctx, c.key(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return envelope, true, nil
}

func (c *RecordCache) Put(ctx context.Context, digest string, envelope []byte) error {
	key := c.key(digest)
	return c.client.Set(ctx, key, envelope, memory.TTLWithJitter(c.ttl, key)).Err()
}

func (c *RecordCache) key(digest string) string {
	return "settlement:record:" + digest
}
