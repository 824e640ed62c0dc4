package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisInboxPrefix = "toasts:"

// RedisInbox keeps toasts in a Redis list per browser session.
type RedisInbox struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisInbox(client *redis.Client, ttl time.Duration) *RedisInbox {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisInbox{client: client, ttl: ttl}
}

func (r *RedisInbox) Push(ctx context.Context, id string, t Toast) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}

	key := redisInboxPrefix + id
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.Expire(ctx, key, r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisInbox) Clear(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisInboxPrefix+id).Err()
}

func (r *RedisInbox) Drain(ctx context.Context, id string) ([]Toast, error) {
	key := redisInboxPrefix + id

	pipe := r.client.TxPipeline()
	lr := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	raw := lr.Val()
	out := make([]Toast, 0, len(raw))
	for _, s := range raw {
		var t Toast
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("decode toast: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}
