package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/corequeue/queue"
)

// Compile-time interface check.
var _ queue.Storage = (*Storage)(nil)

// Storage implements queue.Storage on top of PostgreSQL. Each primitive is a
// single SQL statement, so the protocol's atomicity requirements are met by
// the database: conditional-create is INSERT ... ON CONFLICT DO NOTHING,
// atomic increment is an upsert with RETURNING, and pop-right uses a SKIP
// LOCKED sub-select so competing consumers never serialize on the same row.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage wraps a pgx connection pool as a queue storage backend. The
// caller owns the pool lifecycle and is responsible for running Migrate
// before first use.
func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Pool returns the underlying connection pool for advanced operations.
func (s *Storage) Pool() *pgxpool.Pool { return s.pool }

// Get implements queue.Storage
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM corequeue_kv WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pg get %q: %w", key, err)
	}
	return value, nil
}

// Set implements queue.Storage
func (s *Storage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO corequeue_kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("pg set %q: %w", key, err)
	}
	return nil
}

// SetNX implements queue.Storage
func (s *Storage) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// An expired row must not block the conditional create, so purge it
	// first. Two racing purges are harmless; the INSERT below stays the
	// single atomic decision point.
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM corequeue_kv WHERE key = $1 AND expires_at IS NOT NULL AND expires_at <= now()`,
		key); err != nil {
		return false, fmt.Errorf("pg setnx purge %q: %w", key, err)
	}

	ct, err := s.pool.Exec(ctx,
		`INSERT INTO corequeue_kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, value, expiresAt(ttl))
	if err != nil {
		return false, fmt.Errorf("pg setnx %q: %w", key, err)
	}
	return ct.RowsAffected() > 0, nil
}

// Delete implements queue.Storage
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, stmt := range []string{
		`DELETE FROM corequeue_kv WHERE key = ANY($1)`,
		`DELETE FROM corequeue_hash WHERE key = ANY($1)`,
		`DELETE FROM corequeue_list WHERE key = ANY($1)`,
	} {
		if _, err := s.pool.Exec(ctx, stmt, keys); err != nil {
			return fmt.Errorf("pg delete: %w", err)
		}
	}
	return nil
}

// Exists implements queue.Storage
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM corequeue_kv WHERE key = $1 AND (expires_at IS NULL OR expires_at > now()))`,
		key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg exists %q: %w", key, err)
	}
	return exists, nil
}

// Expire implements queue.Storage
func (s *Storage) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE corequeue_kv SET expires_at = $2 WHERE key = $1`,
		key, expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("pg expire %q: %w", key, err)
	}
	return nil
}

// HGet implements queue.Storage
func (s *Storage) HGet(ctx context.Context, key, field string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM corequeue_hash WHERE key = $1 AND field = $2`,
		key, field).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pg hget %q/%q: %w", key, field, err)
	}
	return value, nil
}

// HSet implements queue.Storage
func (s *Storage) HSet(ctx context.Context, key, field string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO corequeue_hash (key, field, value) VALUES ($1, $2, $3)
		 ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`,
		key, field, value)
	if err != nil {
		return fmt.Errorf("pg hset %q/%q: %w", key, field, err)
	}
	return nil
}

// HSetNX implements queue.Storage
func (s *Storage) HSetNX(ctx context.Context, key, field string, value []byte) (bool, error) {
	ct, err := s.pool.Exec(ctx,
		`INSERT INTO corequeue_hash (key, field, value) VALUES ($1, $2, $3)
		 ON CONFLICT (key, field) DO NOTHING`,
		key, field, value)
	if err != nil {
		return false, fmt.Errorf("pg hsetnx %q/%q: %w", key, field, err)
	}
	return ct.RowsAffected() > 0, nil
}

// HDelete implements queue.Storage
func (s *Storage) HDelete(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM corequeue_hash WHERE key = $1 AND field = ANY($2)`,
		key, fields)
	if err != nil {
		return fmt.Errorf("pg hdelete %q: %w", key, err)
	}
	return nil
}

// HExists implements queue.Storage
func (s *Storage) HExists(ctx context.Context, key, field string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM corequeue_hash WHERE key = $1 AND field = $2)`,
		key, field).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg hexists %q/%q: %w", key, field, err)
	}
	return exists, nil
}

// HIncrBy implements queue.Storage
func (s *Storage) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	// Counter values are stored as their decimal text form, same as the
	// other backends, so the upsert casts through text for the arithmetic.
	var value int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO corequeue_hash (key, field, value)
		 VALUES ($1, $2, convert_to($3::text, 'UTF8'))
		 ON CONFLICT (key, field) DO UPDATE
		 SET value = convert_to((convert_from(corequeue_hash.value, 'UTF8')::bigint + $3)::text, 'UTF8')
		 RETURNING convert_from(value, 'UTF8')::bigint`,
		key, field, delta).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("pg hincrby %q/%q: %w", key, field, err)
	}
	return value, nil
}

// HGetAll implements queue.Storage
func (s *Storage) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field, value FROM corequeue_hash WHERE key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("pg hgetall %q: %w", key, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var field string
		var value []byte
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("pg hgetall %q: %w", key, err)
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg hgetall %q: %w", key, err)
	}
	return out, nil
}

// HLen implements queue.Storage
func (s *Storage) HLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM corequeue_hash WHERE key = $1`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pg hlen %q: %w", key, err)
	}
	return n, nil
}

// LPush implements queue.Storage
//
// Head/tail ordering rides on a single global sequence: left pushes take
// negated sequence values, right pushes positive ones, so the head of a list
// is always its minimum seq and the tail its maximum. The sequence makes
// concurrent pushes conflict-free.
func (s *Storage) LPush(ctx context.Context, key string, values ...string) error {
	for _, value := range values {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO corequeue_list (key, seq, value)
			 VALUES ($1, -nextval('corequeue_list_seq'), $2)`,
			key, value); err != nil {
			return fmt.Errorf("pg lpush %q: %w", key, err)
		}
	}
	return nil
}

// RPush implements queue.Storage
func (s *Storage) RPush(ctx context.Context, key string, values ...string) error {
	for _, value := range values {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO corequeue_list (key, seq, value)
			 VALUES ($1, nextval('corequeue_list_seq'), $2)`,
			key, value); err != nil {
			return fmt.Errorf("pg rpush %q: %w", key, err)
		}
	}
	return nil
}

// RPop implements queue.Storage
func (s *Storage) RPop(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM corequeue_list
		 WHERE ctid IN (
		     SELECT ctid FROM corequeue_list
		     WHERE key = $1
		     ORDER BY seq DESC
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING value`,
		key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pg rpop %q: %w", key, err)
	}
	return value, nil
}

// LLen implements queue.Storage
func (s *Storage) LLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM corequeue_list WHERE key = $1`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pg llen %q: %w", key, err)
	}
	return n, nil
}

// LRange implements queue.Storage
func (s *Storage) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT value FROM corequeue_list WHERE key = $1 ORDER BY seq ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("pg lrange %q: %w", key, err)
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("pg lrange %q: %w", key, err)
		}
		all = append(all, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg lrange %q: %w", key, err)
	}

	n := int64(len(all))
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
	return all[start : stop+1], nil
}

// expiresAt converts a ttl to an absolute timestamp, or nil for no expiry.
func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}
