package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a context-aware cache that may live outside the process.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	Delete(ctx context.Context, key string) error
}

type memoryStore[V any] struct {
	cache Cache[string, V]
	ttl   time.Duration
}

func NewMemoryStore[V any](ttl time.Duration) Store[V] {
	return &memoryStore[V]{cache: NewTTLCache[string, V](), ttl: ttl}
}

func (s *memoryStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	value, ok := s.cache.Get(key)
	return value, ok, nil
}

func (s *memoryStore[V]) Set(_ context.Context, key string, value V) error {
	s.cache.Set(key, value, s.ttl)
	return nil
}

func (s *memoryStore[V]) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// redisStore keeps JSON encoded values under prefix+key.
type redisStore[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore[V any](client *redis.Client, prefix string, ttl time.Duration) Store[V] {
	return &redisStore[V]{client: client, prefix: prefix, ttl: ttl}
}

func (s *redisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var value V
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("redis get %s: %w", s.prefix+key, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("decode cached %s: %w", s.prefix+key, err)
	}
	return value, true, nil
}

func (s *redisStore[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.prefix+key, err)
	}
	return nil
}

func (s *redisStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.prefix+key, err)
	}
	return nil
}

// tieredStore reads through a local store to a shared one.
// Writes and deletes go to both; the local copy is always updated first.
type tieredStore[V any] struct {
	local  Store[V]
	shared Store[V]
}

func NewTieredStore[V any](local, shared Store[V]) Store[V] {
	if shared == nil {
		return local
	}
	return &tieredStore[V]{local: local, shared: shared}
}

func (s *tieredStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	if value, ok, _ := s.local.Get(ctx, key); ok {
		return value, true, nil
	}
	value, ok, err := s.shared.Get(ctx, key)
	if err != nil || !ok {
		return value, false, err
	}
	_ = s.local.Set(ctx, key, value)
	return value, true, nil
}

func (s *tieredStore[V]) Set(ctx context.Context, key string, value V) error {
	_ = s.local.Set(ctx, key, value)
	return s.shared.Set(ctx, key, value)
}

func (s *tieredStore[V]) Delete(ctx context.Context, key string) error {
	_ = s.local.Delete(ctx, key)
	return s.shared.Delete(ctx, key)
}
