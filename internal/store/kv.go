package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"garage-layout/internal/dispatch"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := r.c.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// DefaultKeyPrefix namespaces configuration documents in Redis.
const DefaultKeyPrefix = "garage:config:"

// KVDocuments stores configuration documents in a KV under
// <prefix><logicalPath>, where field services pick them up.
type KVDocuments struct {
	kv     KV
	prefix string
}

// NewKVDocuments creates the store; an empty prefix uses DefaultKeyPrefix.
func NewKVDocuments(kv KV, prefix string) *KVDocuments {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KVDocuments{kv: kv, prefix: prefix}
}

// Key returns the KV key of a logical path.
func (s *KVDocuments) Key(logicalPath string) string {
	return s.prefix + logicalPath
}

// Write implements dispatch.Writer.
func (s *KVDocuments) Write(ctx context.Context, logicalPath string, content []byte) error {
	if _, _, err := dispatch.ParseLogicalPath(logicalPath); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.Key(logicalPath), string(content), 0); err != nil {
		return fmt.Errorf("failed to store %s: %w", logicalPath, err)
	}
	return nil
}

// ReadBytes implements dispatch.Reader.
func (s *KVDocuments) ReadBytes(ctx context.Context, logicalPath string) ([]byte, error) {
	val, err := s.kv.Get(ctx, s.Key(logicalPath))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, fmt.Errorf("%s: %w", logicalPath, dispatch.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load %s: %w", logicalPath, err)
	}
	return []byte(val), nil
}

// List returns the logical paths currently stored.
func (s *KVDocuments) List(ctx context.Context) ([]string, error) {
	keys, err := s.kv.ScanKeys(ctx, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s*: %w", s.prefix, err)
	}
	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		paths = append(paths, strings.TrimPrefix(k, s.prefix))
	}
	return paths, nil
}
