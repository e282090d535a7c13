package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/corequeue/queue"
)

// Compile-time interface check.
var _ queue.Storage = (*Storage)(nil)

// Storage implements queue.Storage on top of a Redis client. Every primitive
// maps to a single Redis command, so the atomicity the queue protocol relies
// on (SETNX for write-once results, HSETNX for lease acquisition, HINCRBY for
// attempt counting) is provided by the server itself.
type Storage struct {
	db redis.UniversalClient
}

// NewStorage wraps a Redis client as a queue storage backend. The caller owns
// the client lifecycle.
func NewStorage(client redis.UniversalClient) *Storage {
	return &Storage{db: client}
}

// Client returns the underlying Redis client for advanced operations.
func (s *Storage) Client() redis.UniversalClient { return s.db }

// Get returns the value at key, with redis.Nil normalized to (nil, nil).
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// Set stores value under key. Zero ttl means no expiration.
func (s *Storage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Set(ctx, key, value, ttl).Err()
}

// SetNX stores value under key only if absent, via a single SET NX command.
func (s *Storage) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.db.SetNX(ctx, key, value, ttl).Result()
}

// Delete removes the given keys.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Del(ctx, keys...).Err()
}

// Exists reports whether key is present.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.db.Exists(ctx, key).Result()
	return n > 0, err
}

// Expire sets an expiry on an existing key.
func (s *Storage) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.db.Expire(ctx, key, ttl).Err()
}

// HGet returns the hash field value, with redis.Nil normalized to (nil, nil).
func (s *Storage) HGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := s.db.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// HSet stores field → value in the hash at key.
func (s *Storage) HSet(ctx context.Context, key, field string, value []byte) error {
	return s.db.HSet(ctx, key, field, value).Err()
}

// HSetNX stores field → value only if the field is absent, via HSETNX.
func (s *Storage) HSetNX(ctx context.Context, key, field string, value []byte) (bool, error) {
	return s.db.HSetNX(ctx, key, field, value).Result()
}

// HDelete removes the given fields from the hash at key.
func (s *Storage) HDelete(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.db.HDel(ctx, key, fields...).Err()
}

// HExists reports whether field is present in the hash at key.
func (s *Storage) HExists(ctx context.Context, key, field string) (bool, error) {
	return s.db.HExists(ctx, key, field).Result()
}

// HIncrBy atomically adds delta to the hash field and returns the new value.
func (s *Storage) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return s.db.HIncrBy(ctx, key, field, delta).Result()
}

// HGetAll returns every field → value pair in the hash at key.
func (s *Storage) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	raw, err := s.db.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for field, value := range raw {
		out[field] = []byte(value)
	}
	return out, nil
}

// HLen returns the number of fields in the hash at key.
func (s *Storage) HLen(ctx context.Context, key string) (int64, error) {
	return s.db.HLen(ctx, key).Result()
}

// LPush prepends values to the head of the list at key.
func (s *Storage) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return s.db.LPush(ctx, key, toAnySlice(values)...).Err()
}

// RPush appends values to the tail of the list at key.
func (s *Storage) RPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return s.db.RPush(ctx, key, toAnySlice(values)...).Err()
}

// RPop removes and returns the tail element, with redis.Nil normalized to
// ("", nil).
func (s *Storage) RPop(ctx context.Context, key string) (string, error) {
	val, err := s.db.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// LLen returns the length of the list at key.
func (s *Storage) LLen(ctx context.Context, key string) (int64, error) {
	return s.db.LLen(ctx, key).Result()
}

// LRange returns list elements between start and stop inclusive.
func (s *Storage) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.db.LRange(ctx, key, start, stop).Result()
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
