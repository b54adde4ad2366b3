package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS quota_events (
	tier_id TEXT NOT NULL,
	at_unix_ns INTEGER NOT NULL,
	tokens INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_quota_events_tier_at ON quota_events(tier_id, at_unix_ns);
`

// SQLiteStore persists quota events so counters survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the store at path. ":memory:" works for
// tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open quota store: %w", err)
	}
	// Serialized writes keep Record atomic across concurrent dispatches.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate quota store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, tierID string, at time.Time, tokens int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_events(tier_id, at_unix_ns, tokens) VALUES (?, ?, ?)`,
		tierID, at.UnixNano(), tokens)
	if err != nil {
		return fmt.Errorf("record quota event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountSince(ctx context.Context, tierID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quota_events WHERE tier_id = ? AND at_unix_ns >= ?`,
		tierID, since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count quota events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) TokensSince(ctx context.Context, tierID string, since time.Time) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(tokens) FROM quota_events WHERE tier_id = ? AND at_unix_ns >= ?`,
		tierID, since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum quota tokens: %w", err)
	}
	return int(n.Int64), nil
}

func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM quota_events WHERE at_unix_ns < ?`, before.UnixNano())
	if err != nil {
		return fmt.Errorf("prune quota events: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
