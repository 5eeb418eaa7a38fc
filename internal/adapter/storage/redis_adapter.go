package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	inflightKeyPrefix = "fanout:inflight:"
	inflightTTL       = 2 * time.Minute
)

// releaseScript deletes the guard key only if still held by the
// caller, so a slow submitter cannot free a lock a later run owns.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter guards each (transaction, store) pair so at most one
// order-creation attempt is in flight at a time. The TTL covers the
// worst-case submission (all attempts plus backoff) and expires stale
// locks left by a crashed process.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) TryAcquire(ctx context.Context, transactionID, storeDomain, owner string) (bool, error) {
	ok, err := r.client.SetNX(ctx, inflightKey(transactionID, storeDomain), owner, inflightTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire inflight guard: %w", err)
	}
	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, transactionID, storeDomain, owner string) error {
	err := releaseScript.Run(ctx, r.client, []string{inflightKey(transactionID, storeDomain)}, owner).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release inflight guard: %w", err)
	}
	return nil
}

func inflightKey(transactionID, storeDomain string) string {
	return inflightKeyPrefix + transactionID + ":" + storeDomain
}
