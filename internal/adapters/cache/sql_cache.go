package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
)

// Dialect holds the SQL that differs between database backends
type Dialect struct {
	Name        string
	Driver      string
	CreateTable []string
	Upsert      string
	Numbered    bool // $1, $2, ... placeholders instead of ?
}

// SQLiteDialect targets github.com/mattn/go-sqlite3
var SQLiteDialect = Dialect{
	Name:   "SQLite",
	Driver: "sqlite3",
	CreateTable: []string{
		`CREATE TABLE IF NOT EXISTS fda_cache (
			cache_key TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			payload BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fda_cache_category_stored_at ON fda_cache(category, stored_at)`,
	},
	Upsert: `INSERT OR REPLACE INTO fda_cache (cache_key, category, payload, stored_at) VALUES (?, ?, ?, ?)`,
}

// MySQLDialect targets github.com/go-sql-driver/mysql
var MySQLDialect = Dialect{
	Name:   "MySQL",
	Driver: "mysql",
	CreateTable: []string{
		`CREATE TABLE IF NOT EXISTS fda_cache (
			cache_key VARCHAR(512) PRIMARY KEY,
			category VARCHAR(64) NOT NULL,
			payload LONGBLOB NOT NULL,
			stored_at BIGINT NOT NULL,
			INDEX idx_fda_cache_category_stored_at (category, stored_at)
		)`,
	},
	Upsert: `INSERT INTO fda_cache (cache_key, category, payload, stored_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE category = VALUES(category), payload = VALUES(payload), stored_at = VALUES(stored_at)`,
}

// PostgresDialect targets github.com/lib/pq
var PostgresDialect = Dialect{
	Name:   "PostgreSQL",
	Driver: "postgres",
	CreateTable: []string{
		`CREATE TABLE IF NOT EXISTS fda_cache (
			cache_key TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			payload BYTEA NOT NULL,
			stored_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fda_cache_category_stored_at ON fda_cache(category, stored_at)`,
	},
	Upsert: `INSERT INTO fda_cache (cache_key, category, payload, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET category = EXCLUDED.category, payload = EXCLUDED.payload, stored_at = EXCLUDED.stored_at`,
	Numbered: true,
}

// SQLCache is a database/sql implementation of the CacheRepository interface.
// Entries do not survive a restart: the table is emptied when the cache opens.
type SQLCache struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLCache, error) {
	return NewSQLCache(ctx, SQLiteDialect, dbPath, logger)
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(ctx context.Context, dsn string, logger *zap.Logger) (*SQLCache, error) {
	return NewSQLCache(ctx, MySQLDialect, dsn, logger)
}

// NewPostgresCache creates a new PostgreSQL cache
func NewPostgresCache(ctx context.Context, dsn string, logger *zap.Logger) (*SQLCache, error) {
	return NewSQLCache(ctx, PostgresDialect, dsn, logger)
}

// NewSQLCache opens the database, creates the cache table and empties it
func NewSQLCache(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*SQLCache, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if dialect.Driver == SQLiteDialect.Driver {
		// go-sqlite3 serializes writers; one connection also keeps an
		// in-memory database alive for the life of the pool.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name, err)
	}

	for _, stmt := range dialect.CreateTable {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s cache table: %w", dialect.Name, err)
		}
	}

	c := &SQLCache{db: db, dialect: dialect, logger: logger}

	n, err := c.Flush(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if n > 0 {
		logger.Info("Discarded cache entries from a previous run",
			zap.String("backend", dialect.Name),
			zap.Int("entries", n))
	}

	return c, nil
}

// rebind rewrites ? placeholders for dialects that number them
func (c *SQLCache) rebind(query string) string {
	if !c.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get retrieves a cached entry by key
func (c *SQLCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var entry core.CacheEntry
	var category string
	var storedAt int64

	err := c.db.QueryRowContext(ctx, c.rebind(`
		SELECT cache_key, category, payload, stored_at
		FROM fda_cache
		WHERE cache_key = ?
	`), key).Scan(&entry.Key, &category, &entry.Payload, &storedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	entry.Category = core.Category(category)
	entry.StoredAt = time.Unix(0, storedAt).UTC()
	return &entry, nil
}

// Set stores a cache entry
func (c *SQLCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	_, err := c.db.ExecContext(ctx, c.rebind(c.dialect.Upsert),
		entry.Key, string(entry.Category), entry.Payload, entry.StoredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *SQLCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, c.rebind(`
		DELETE FROM fda_cache
		WHERE cache_key = ?
	`), key)

	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteStoredBefore removes the category's entries stored before cutoff
func (c *SQLCache) DeleteStoredBefore(ctx context.Context, category core.Category, cutoff time.Time) (int, error) {
	result, err := c.db.ExecContext(ctx, c.rebind(`
		DELETE FROM fda_cache
		WHERE category = ? AND stored_at < ?
	`), string(category), cutoff.UnixNano())

	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired entries: %w", err)
	}
	return c.rowsAffected(result), nil
}

// Flush removes every entry
func (c *SQLCache) Flush(ctx context.Context) (int, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM fda_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to flush %s cache: %w", c.dialect.Name, err)
	}
	return c.rowsAffected(result), nil
}

// CountByCategory reports the number of stored entries per category
func (c *SQLCache) CountByCategory(ctx context.Context) (map[core.Category]int, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM fda_cache
		GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan cache counts: %w", err)
		}
		counts[core.Category(category)] = n
	}
	return counts, rows.Err()
}

func (c *SQLCache) rowsAffected(result sql.Result) int {
	n, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected", zap.Error(err))
		return 0
	}
	return int(n)
}

// Close closes the database connection
func (c *SQLCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", c.dialect.Name, err)
	}
	return nil
}
