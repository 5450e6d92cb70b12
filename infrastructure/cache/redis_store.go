package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/shinise-scout/internal/ports"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "shinise:".
	Prefix string
}

// RedisStore keeps documents as JSON envelopes under
// <prefix><collection>/<key>. Keys carry no Redis expiry; freshness is
// decided by Layer on read.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ports.DocumentStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis.
func NewRedisStore(opts RedisOptions) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisStore{client: rdb, prefix: opts.Prefix}
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(collection, key string) string {
	return s.prefix + collection + "/" + key
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }

// GetDoc implements ports.DocumentStore.
func (s *RedisStore) GetDoc(ctx context.Context, collection, key string) (*ports.Document, error) {
	val, err := s.client.Get(ctx, s.key(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var doc ports.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}

// SetDoc implements ports.DocumentStore.
func (s *RedisStore) SetDoc(ctx context.Context, collection, key string, doc ports.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := s.client.Set(ctx, s.key(collection, key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
