package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

// DefaultUpdateRetries bounds optimistic update attempts before ErrConflict.
const DefaultUpdateRetries = 16

type RedisStore struct {
	client  *redis.Client
	prefix  string
	retries int
	log     *zap.Logger
}

func NewRedisStore(url, prefix string, log *zap.Logger) (ports.Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to Redis", zap.String("prefix", prefix))
	return NewRedisStoreFromClient(client, prefix, log), nil
}

func NewRedisStoreFromClient(client *redis.Client, prefix string, log *zap.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		retries: DefaultUpdateRetries,
		log:     log,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ports.ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, s.prefix+key, delta).Result()
}

// Update runs fn inside WATCH/MULTI and retries when another writer touched
// the key in between.
func (s *RedisStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
	k := s.prefix + key
	var next string

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Result()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		next, err = fn(cur, exists)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < s.retries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debug("Redis update lost a race, retrying",
				zap.String("key", key),
				zap.Int("attempt", i+1),
			)
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("update %s: %w", key, ports.ErrConflict)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
