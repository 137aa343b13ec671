package respcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS query_cache (
    query_hash               TEXT PRIMARY KEY,
    answer                   TEXT NOT NULL,
    srd_id                   TEXT NOT NULL,
    query_text               TEXT NOT NULL,
    source_documents_summary TEXT,
    timestamp                TEXT NOT NULL,
    ttl                      INTEGER NOT NULL,
    generation_config_used   TEXT,
    was_conversational       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_query_cache_ttl ON query_cache (ttl);
`

// SQLiteCache is a durable response cache backed by a local SQLite file.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the cache database at path. A zero ttl
// uses DefaultTTL.
func NewSQLiteCache(path string, ttl time.Duration) (*SQLiteCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &SQLiteCache{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Lookup reads the record under key. Missing rows, scan failures, and
// expired records all return ErrCacheMiss.
func (c *SQLiteCache) Lookup(ctx context.Context, key string) (*Record, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT query_hash, answer, srd_id, query_text, source_documents_summary,
		       timestamp, ttl, generation_config_used, was_conversational
		FROM query_cache WHERE query_hash = ?`, key)

	var rec Record
	var ts string
	var conversational int
	err := row.Scan(&rec.QueryHash, &rec.Answer, &rec.SRDID, &rec.QueryText,
		&rec.SourceSummary, &ts, &rec.ExpiresAt, &rec.GenerationConfig, &conversational)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
		}
		return nil, fmt.Errorf("%w: read record: %v", ErrCacheMiss, err)
	}

	if rec.ExpiresAt <= c.now().Unix() {
		return nil, fmt.Errorf("%w: record expired", ErrCacheMiss)
	}

	rec.WasConversational = conversational != 0
	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		rec.Timestamp = parsed
	}
	return &rec, nil
}

// Store writes the record, replacing any existing row under the same key.
func (c *SQLiteCache) Store(ctx context.Context, rec *Record) error {
	expiresAt := rec.ExpiresAt
	if expiresAt == 0 {
		expiresAt = c.now().Add(c.ttl).Unix()
	}
	timestamp := rec.Timestamp
	if timestamp.IsZero() {
		timestamp = c.now()
	}

	conversational := 0
	if rec.WasConversational {
		conversational = 1
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO query_cache
		(query_hash, answer, srd_id, query_text, source_documents_summary,
		 timestamp, ttl, generation_config_used, was_conversational)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.QueryHash, rec.Answer, rec.SRDID, rec.QueryText,
		TruncateSummary(rec.SourceSummary), timestamp.UTC().Format(time.RFC3339),
		expiresAt, rec.GenerationConfig, conversational)
	if err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Health verifies the backing database is reachable.
func (c *SQLiteCache) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
