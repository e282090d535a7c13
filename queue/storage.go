package queue

import (
	"context"
	"time"
)

// Storage is the minimal contract a backing store must satisfy for the queue
// protocol. Every state transition the engine performs is expressed through
// these primitives; each call must be atomic with respect to the keys it
// touches, but no atomicity is assumed across calls.
//
// Absent values are reported as zero values, not errors: Get and HGet return
// (nil, nil) for missing keys, RPop returns ("", nil) on an empty list.
type Storage interface {
	// Get returns the value stored under key, or (nil, nil) if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A positive ttl sets an expiry; zero means
	// the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value under key only if the key does not already exist.
	// It reports whether the value was written. The write and the existence
	// check must be a single atomic operation.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets an expiry on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// HGet returns the value of field in the hash at key, or (nil, nil) if
	// the hash or field is absent.
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HSet stores field → value in the hash at key.
	HSet(ctx context.Context, key, field string, value []byte) error

	// HSetNX stores field → value only if the field does not already exist
	// in the hash. It reports whether the value was written. The write and
	// the existence check must be a single atomic operation.
	HSetNX(ctx context.Context, key, field string, value []byte) (bool, error)

	// HDelete removes the given fields from the hash at key.
	HDelete(ctx context.Context, key string, fields ...string) error

	// HExists reports whether field is present in the hash at key.
	HExists(ctx context.Context, key, field string) (bool, error)

	// HIncrBy atomically adds delta to the integer value of field in the
	// hash at key, creating it at zero if absent, and returns the new value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// HGetAll returns every field → value pair in the hash at key. An absent
	// hash yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// HLen returns the number of fields in the hash at key.
	HLen(ctx context.Context, key string) (int64, error)

	// LPush prepends values to the head of the list at key.
	LPush(ctx context.Context, key string, values ...string) error

	// RPush appends values to the tail of the list at key.
	RPush(ctx context.Context, key string, values ...string) error

	// RPop removes and returns the tail element of the list at key, or
	// ("", nil) if the list is empty.
	RPop(ctx context.Context, key string) (string, error)

	// LLen returns the length of the list at key.
	LLen(ctx context.Context, key string) (int64, error)

	// LRange returns the elements of the list at key between start and stop
	// inclusive. Negative indices count from the tail, -1 being the last
	// element.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}
