package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eringen/pagecms/sqldb"
)

// SQLStore keeps entries in a cache_entries table so separate processes (the
// server and the import CLI) share one cache and can invalidate each other.
type SQLStore struct {
	db  *sqldb.DB
	now func() time.Time
}

// NewSQLStore creates the cache table if needed.
func NewSQLStore(db *sqldb.DB) (*SQLStore, error) {
	s := &SQLStore{db: db, now: time.Now}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entries (
    cache_key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    expires_at BIGINT NOT NULL
);
`); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock replaces the time source.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT value FROM cache_entries WHERE cache_key = ? AND expires_at > ?`),
		key, s.now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
INSERT INTO cache_entries (cache_key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`),
		key, string(value), s.now().Add(ttl).UnixNano())
	return err
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM cache_entries WHERE cache_key = ?`), key)
	return err
}

// Sweep removes expired rows and returns how many were deleted.
func (s *SQLStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM cache_entries WHERE expires_at <= ?`), s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
