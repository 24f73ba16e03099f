package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore remembers client-supplied deduplication tokens so a retried send
// returns the already-persisted message instead of appending a second one.
type DedupStore interface {
	// Reserve claims the token. fresh is true when the token has never been
	// seen; otherwise messageID carries the bound message id, or 0 while the
	// first send is still in flight.
	Reserve(ctx context.Context, token string) (messageID int, fresh bool, err error)
	// Bind records the message id the token produced.
	Bind(ctx context.Context, token string, messageID int) error
	// Release frees a reserved token after a failed send so the client can
	// retry with the same token.
	Release(ctx context.Context, token string) error
}

// RedisDedup implements DedupStore on a shared Redis instance, so dedup holds
// across process restarts for the lifetime of the TTL.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{client: client, ttl: ttl}
}

func dedupKey(token string) string {
	return "dedup:" + token
}

func (d *RedisDedup) Reserve(ctx context.Context, token string) (int, bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKey(token), "0", d.ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("dedup reserve: %w", err)
	}
	if ok {
		return 0, true, nil
	}

	val, err := d.client.Get(ctx, dedupKey(token)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("dedup lookup: %w", err)
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("dedup lookup: bad value %q", val)
	}
	return id, false, nil
}

func (d *RedisDedup) Bind(ctx context.Context, token string, messageID int) error {
	return d.client.Set(ctx, dedupKey(token), strconv.Itoa(messageID), redis.KeepTTL).Err()
}

func (d *RedisDedup) Release(ctx context.Context, token string) error {
	return d.client.Del(ctx, dedupKey(token)).Err()
}
