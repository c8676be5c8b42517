package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "kv:"
	redisUpdateRetries = 10
)

// RedisBackend stores documents as Redis strings
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend creates a new Redis backend
func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

// Get retrieves a document by key
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return data, nil
}

// Put replaces a document
func (b *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := b.rdb.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to put node: %w", err)
	}
	return nil
}

// Update uses WATCH/MULTI and retries when another client wrote the key first
func (b *RedisBackend) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	rkey := redisKeyPrefix + key

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rkey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to get node: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := b.rdb.Watch(ctx, txf, rkey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update node %s after %d attempts", key, redisUpdateRetries)
}
