package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/0xReLogic/colofail/internal/registry"
)

const defaultMaxRetries = 5

// Redis stores the registry as a JSON string under one key.
type Redis struct {
	client     *redis.Client
	key        string
	maxRetries int
}

func NewRedis(client *redis.Client, key string, maxRetries int) *Redis {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Redis{client: client, key: key, maxRetries: maxRetries}
}

func (r *Redis) Load(ctx context.Context) (registry.FailingCountries, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, registry.ErrNotSeeded
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return registry.Decode(val)
}

func (r *Redis) Save(ctx context.Context, fc registry.FailingCountries) error {
	raw, err := registry.Encode(fc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Update runs fn under WATCH so the write only lands if nobody else changed
// the key in between; otherwise it retries against the fresh value.
func (r *Redis) Update(ctx context.Context, fn func(registry.FailingCountries) (registry.FailingCountries, error)) (registry.FailingCountries, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		var next registry.FailingCountries
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			val, err := tx.Get(ctx, r.key).Result()
			if errors.Is(err, redis.Nil) {
				return registry.ErrNotSeeded
			}
			if err != nil {
				return fmt.Errorf("redis get %s: %w", r.key, err)
			}
			cur, err := registry.Decode(val)
			if err != nil {
				return err
			}
			next, err = fn(cur)
			if err != nil {
				return err
			}
			raw, err := registry.Encode(next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, r.key, raw, 0)
				return nil
			})
			return err
		}, r.key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			storeConflictsTotal.WithLabelValues("redis").Inc()
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

func (r *Redis) Seed(ctx context.Context, fc registry.FailingCountries) (bool, error) {
	raw, err := registry.Encode(fc)
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.key, raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", r.key, err)
	}
	return ok, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
