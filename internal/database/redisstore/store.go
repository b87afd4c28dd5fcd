// Package redisstore provides a Redis-backed key-value store so several
// clients can share the comment cache.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talktome/internal/cache"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this store.
const DefaultPrefix = "talktome:"

const opTimeout = 2 * time.Second

var _ cache.KeyValueStore = (*Store)(nil)

// Store implements cache.KeyValueStore on top of Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// Connect creates a Redis client and verifies connectivity.
func Connect(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(rdb), nil
}

// New wraps an existing client. Keys expire server-side after cache.CacheTTL
// so abandoned entries do not accumulate; the cache still checks freshness.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, prefix: DefaultPrefix, ttl: cache.CacheTTL}
}

// WithPrefix overrides the key prefix.
func (s *Store) WithPrefix(prefix string) *Store {
	s.prefix = prefix
	return s
}

// Close closes the client.
func (s *Store) Close() error { return s.rdb.Close() }

// Get implements cache.KeyValueStore.
func (s *Store) Get(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements cache.KeyValueStore.
func (s *Store) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err()
}

// Remove implements cache.KeyValueStore.
func (s *Store) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
