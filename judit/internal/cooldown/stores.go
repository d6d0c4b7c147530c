package cooldown

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/jurimon/dbopen"
)

// Schema is the SQLite table behind SQLiteStore.
const Schema = `
CREATE TABLE IF NOT EXISTS cooldown_marks (
	key       TEXT PRIMARY KEY,
	marked_at INTEGER NOT NULL
);`

// SQLiteStore keeps marks in the service database.
type SQLiteStore struct {
	DB *sql.DB
}

// NewSQLiteStore applies Schema and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("cooldown: apply schema: %w", err)
	}
	return &SQLiteStore{DB: db}, nil
}

// LastAttempt implements Store.
func (s *SQLiteStore) LastAttempt(ctx context.Context, key string) (time.Time, bool, error) {
	var ms int64
	err := s.DB.QueryRowContext(ctx, `SELECT marked_at FROM cooldown_marks WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// Mark implements Store.
func (s *SQLiteStore) Mark(ctx context.Context, key string, at time.Time) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO cooldown_marks (key, marked_at) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET marked_at = excluded.marked_at`,
		key, at.UnixMilli())
	return err
}

// RedisStore keeps marks in Redis, shared by every replica pointed at it.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. prefix namespaces keys ("jurimon:" for
// example); ttl, when positive, lets Redis drop marks that no longer matter.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// LastAttempt implements Store.
func (s *RedisStore) LastAttempt(ctx context.Context, key string) (time.Time, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Unreadable marks do not block anyone.
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// Mark implements Store.
func (s *RedisStore) Mark(ctx context.Context, key string, at time.Time) error {
	return s.client.Set(ctx, s.prefix+key, strconv.FormatInt(at.UnixMilli(), 10), s.ttl).Err()
}

// MemoryStore is a process-local store for tests and the CLI.
type MemoryStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[string]time.Time)}
}

// LastAttempt implements Store.
func (s *MemoryStore) LastAttempt(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.marks[key]
	return t, ok, nil
}

// Mark implements Store.
func (s *MemoryStore) Mark(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[key] = at
	return nil
}
