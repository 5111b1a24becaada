package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "replyflow:inbound:"

// RedisDeduper remembers provider message ids so platform redeliveries are
// acknowledged without being relayed twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper returns nil when client is nil, which disables dedupe.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Claim records id and reports whether this is its first delivery.
func (d *RedisDeduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("messaging: dedupe claim: %w", err)
	}
	return ok, nil
}

// Release forgets id so a redelivery is processed.
func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, dedupeKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("messaging: dedupe release: %w", err)
	}
	return nil
}
