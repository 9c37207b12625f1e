package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite connection pools.
//
// Mutations go through a single-connection writer pool so concurrent sync
// runs serialize instead of tripping SQLITE_BUSY. Reads go through a wider
// reader pool; with WAL enabled readers never block the writer.
type DB struct {
	writer  *sql.DB
	reader  *sql.DB
	path    string
	metrics MetricsRecorder
}

// MetricsRecorder defines the interface for recording data integrity metrics
type MetricsRecorder interface {
	RecordCourseIntegrityIssue(issueType string)
}

// New creates the reader and writer pools and initializes the schema
func New(ctx context.Context, dbPath string) (*DB, error) {
	// Ensure directory exists (skip for in-memory database)
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		// Only create directory if it's not empty and not current directory
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := openPool(ctx, dbPath, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open writer pool: %w", err)
	}

	// A second pool against :memory: would open a separate empty database,
	// so the in-memory case reads through the writer pool.
	reader := writer
	if dbPath != ":memory:" {
		reader, err = openPool(ctx, dbPath, 8)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("failed to open reader pool: %w", err)
		}
	}

	db := &DB{
		writer: writer,
		reader: reader,
		path:   dbPath,
	}

	// Initialize schema
	if err := InitSchema(ctx, writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// openPool opens one connection pool and applies the session pragmas
func openPool(ctx context.Context, dbPath string, maxConns int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)

	// Enable WAL mode for better concurrency
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to 30 seconds to handle concurrent writes during warmup
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=30000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable foreign keys so progress rows follow their course on delete
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Set synchronous mode to NORMAL for better performance
	if _, err := conn.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	// Test connection
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// Close closes both connection pools
func (db *DB) Close() error {
	var firstErr error
	if db.reader != nil && db.reader != db.writer {
		if err := db.reader.Close(); err != nil {
			firstErr = err
		}
	}
	if db.writer != nil {
		if err := db.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// SetMetrics sets the metrics recorder for data integrity monitoring
func (db *DB) SetMetrics(recorder MetricsRecorder) {
	db.metrics = recorder
}

// recordIntegrityIssue reports a data integrity issue when a recorder is set
func (db *DB) recordIntegrityIssue(issueType string) {
	if db.metrics != nil {
		db.metrics.RecordCourseIntegrityIssue(issueType)
	}
}

// Ping verifies both connection pools are alive
func (db *DB) Ping(ctx context.Context) error {
	if err := db.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Ready checks the database can serve queries.
// Performs a real read against the schema instead of a bare ping.
func (db *DB) Ready(ctx context.Context) error {
	var count int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM curricula`).Scan(&count); err != nil {
		return fmt.Errorf("readiness query: %w", err)
	}
	return nil
}

// ExecBatchContext runs fn with a prepared statement inside a single transaction.
// This reduces lock contention during sync by batching writes.
func (db *DB) ExecBatchContext(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	if err := fn(stmt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// NewTestDB creates an in-memory database for testing.
// This ensures consistent test data isolation across all test files.
func NewTestDB() (*DB, error) {
	return New(context.Background(), ":memory:")
}
