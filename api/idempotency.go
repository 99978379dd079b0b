package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const headerIdempotencyKey = "Idempotency-Key"

// Deduper records idempotency keys so a retried create is not applied twice.
type Deduper interface {
	Claim(ctx context.Context, userID, key string) (bool, error)
	Release(ctx context.Context, userID, key string) error
}

// RedisDeduper keeps claimed keys in Redis so every gateway instance sees
// them.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return fmt.Sprintf("idem:%s:%s", userID, key)
}

// Claim records the key and reports whether it was new.
func (r *RedisDeduper) Claim(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Release forgets a claimed key after the create failed so the client may
// retry.
func (r *RedisDeduper) Release(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}
