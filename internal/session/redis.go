package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores sessions as JSON strings with a TTL that follows ExpireAt.
type RedisPersister struct {
	client *redis.Client
	maxTTL time.Duration
}

func NewRedisPersister(client *redis.Client, maxTTL time.Duration) *RedisPersister {
	if maxTTL <= 0 {
		maxTTL = 31 * 24 * time.Hour
	}
	return &RedisPersister{client: client, maxTTL: maxTTL}
}

func (r *RedisPersister) Load(ctx context.Context, key string) (Session, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return s, nil
}

func (r *RedisPersister) Save(ctx context.Context, key string, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := r.maxTTL
	if !s.ExpireAt.IsZero() {
		// keep the entry a little past expiry so CheckExpiry can observe it and clean up
		if until := time.Until(s.ExpireAt) + time.Minute; until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisPersister) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisPersister) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
