package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "idempotency:order:"
	pendingValue    = "pending"
	pendingKeyTTL   = time.Minute
	completedKeyTTL = 24 * time.Hour
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Reserve(ctx context.Context, key string) (uuid.UUID, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, pendingValue, pendingKeyTTL).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return uuid.Nil, nil
	}

	v, err := r.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry the request
		return uuid.Nil, ErrInFlight
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis get: %w", err)
	}
	if v == pendingValue {
		return uuid.Nil, ErrInFlight
	}

	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return id, nil
}

func (r *RedisStore) Complete(ctx context.Context, key string, orderID uuid.UUID) error {
	return r.client.Set(ctx, keyPrefix+key, orderID.String(), completedKeyTTL).Err()
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}
