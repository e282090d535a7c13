package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryStorage implements the Storage interface in process memory for
// testing and local development. All operations are serialized behind a
// single mutex, which gives the per-call atomicity the protocol requires.
type MemoryStorage struct {
	mu     sync.Mutex
	kv     map[string]memoryValue
	hashes map[string]map[string][]byte
	lists  map[string][]string
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (v memoryValue) expired(now time.Time) bool {
	return !v.expiresAt.IsZero() && v.expiresAt.Before(now)
}

// NewMemoryStorage creates an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		kv:     make(map[string]memoryValue),
		hashes: make(map[string]map[string][]byte),
		lists:  make(map[string][]string),
	}
}

// Get implements Storage
func (ms *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	v, ok := ms.getValue(key)
	if !ok {
		return nil, nil
	}
	data := make([]byte, len(v.data))
	copy(data, v.data)
	return data, nil
}

// Set implements Storage
func (ms *MemoryStorage) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.kv[key] = newMemoryValue(value, ttl)
	return nil
}

// SetNX implements Storage
func (ms *MemoryStorage) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.getValue(key); ok {
		return false, nil
	}
	ms.kv[key] = newMemoryValue(value, ttl)
	return true, nil
}

// Delete implements Storage
func (ms *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, key := range keys {
		delete(ms.kv, key)
		delete(ms.hashes, key)
		delete(ms.lists, key)
	}
	return nil
}

// Exists implements Storage
func (ms *MemoryStorage) Exists(_ context.Context, key string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, ok := ms.getValue(key)
	return ok, nil
}

// Expire implements Storage
func (ms *MemoryStorage) Expire(_ context.Context, key string, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	v, ok := ms.getValue(key)
	if !ok {
		return nil
	}
	v.expiresAt = time.Now().Add(ttl)
	ms.kv[key] = v
	return nil
}

// HGet implements Storage
func (ms *MemoryStorage) HGet(_ context.Context, key, field string) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	value, ok := ms.hashes[key][field]
	if !ok {
		return nil, nil
	}
	data := make([]byte, len(value))
	copy(data, value)
	return data, nil
}

// HSet implements Storage
func (ms *MemoryStorage) HSet(_ context.Context, key, field string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.hash(key)[field] = append([]byte(nil), value...)
	return nil
}

// HSetNX implements Storage
func (ms *MemoryStorage) HSetNX(_ context.Context, key, field string, value []byte) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	h := ms.hash(key)
	if _, ok := h[field]; ok {
		return false, nil
	}
	h[field] = append([]byte(nil), value...)
	return true, nil
}

// HDelete implements Storage
func (ms *MemoryStorage) HDelete(_ context.Context, key string, fields ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	h, ok := ms.hashes[key]
	if !ok {
		return nil
	}
	for _, field := range fields {
		delete(h, field)
	}
	if len(h) == 0 {
		delete(ms.hashes, key)
	}
	return nil
}

// HExists implements Storage
func (ms *MemoryStorage) HExists(_ context.Context, key, field string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	_, ok := ms.hashes[key][field]
	return ok, nil
}

// HIncrBy implements Storage
func (ms *MemoryStorage) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	h := ms.hash(key)
	var current int64
	if raw, ok := h[field]; ok {
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("hash %s field %s holds non-integer value %q", key, field, raw)
		}
		current = n
	}
	current += delta
	h[field] = strconv.AppendInt(nil, current, 10)
	return current, nil
}

// HGetAll implements Storage
func (ms *MemoryStorage) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make(map[string][]byte, len(ms.hashes[key]))
	for field, value := range ms.hashes[key] {
		out[field] = append([]byte(nil), value...)
	}
	return out, nil
}

// HLen implements Storage
func (ms *MemoryStorage) HLen(_ context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return int64(len(ms.hashes[key])), nil
}

// LPush implements Storage
func (ms *MemoryStorage) LPush(_ context.Context, key string, values ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	// LPush prepends one value at a time, so the last argument ends up at
	// the head, mirroring the usual list semantics.
	list := ms.lists[key]
	for _, value := range values {
		list = append([]string{value}, list...)
	}
	ms.lists[key] = list
	return nil
}

// RPush implements Storage
func (ms *MemoryStorage) RPush(_ context.Context, key string, values ...string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.lists[key] = append(ms.lists[key], values...)
	return nil
}

// RPop implements Storage
func (ms *MemoryStorage) RPop(_ context.Context, key string) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	list := ms.lists[key]
	if len(list) == 0 {
		return "", nil
	}
	value := list[len(list)-1]
	list = list[:len(list)-1]
	if len(list) == 0 {
		delete(ms.lists, key)
	} else {
		ms.lists[key] = list
	}
	return value, nil
}

// LLen implements Storage
func (ms *MemoryStorage) LLen(_ context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return int64(len(ms.lists[key])), nil
}

// LRange implements Storage
func (ms *MemoryStorage) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	list := ms.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return nil, nil
	}

	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// hash returns the hash map stored at key, creating it when absent. Callers
// must hold the mutex.
func (ms *MemoryStorage) hash(key string) map[string][]byte {
	h, ok := ms.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		ms.hashes[key] = h
	}
	return h
}

// getValue returns the live value for key, lazily purging it if expired.
// Callers must hold the mutex.
func (ms *MemoryStorage) getValue(key string) (memoryValue, bool) {
	v, ok := ms.kv[key]
	if !ok {
		return memoryValue{}, false
	}
	if v.expired(time.Now()) {
		delete(ms.kv, key)
		return memoryValue{}, false
	}
	return v, true
}

func newMemoryValue(value []byte, ttl time.Duration) memoryValue {
	v := memoryValue{data: append([]byte(nil), value...)}
	if ttl > 0 {
		v.expiresAt = time.Now().Add(ttl)
	}
	return v
}
