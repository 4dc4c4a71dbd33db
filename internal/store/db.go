package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/lazypower/interest/internal/clock"
)

// Per-connection settings. They travel in the DSN so every pooled
// connection gets them, not just the one that happened to run a PRAGMA.
var connPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
	"mmap_size(268435456)", // 256MB
}

// Transactions retried on SQLITE_BUSY before giving up.
const (
	maxTxAttempts = 5
	txRetryDelay  = 25 * time.Millisecond
)

// DB wraps a sql.DB connection to the interest SQLite database.
type DB struct {
	*sql.DB
	Path string

	clock clock.Clock
}

// DefaultDBPath returns the default database path: ~/.interest/interest.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".interest", "interest.db"), nil
}

// dsn builds a modernc DSN for name with the connection pragmas and
// BEGIN IMMEDIATE transactions.
func dsn(name string, extra ...string) string {
	params := make([]string, 0, len(connPragmas)+len(extra)+1)
	for _, p := range append(append([]string{}, connPragmas...), extra...) {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")
	return name + "?" + strings.Join(params, "&")
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dsn(path, "journal_mode(WAL)"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initDB(sqlDB, path)
}

// OpenMemory opens an isolated in-memory database. Every call returns a
// fresh, empty store, which is what tests rely on.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(":memory:"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	return initDB(sqlDB, ":memory:")
}

func initDB(sqlDB *sql.DB, path string) (*DB, error) {
	db := &DB{DB: sqlDB, Path: path, clock: clock.System()}
	if err := db.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// UseClock sets the time source for bookkeeping timestamps (created_at,
// recorded_at, topics_resolved_at). Call it before the store is shared.
func (db *DB) UseClock(c clock.Clock) {
	if c != nil {
		db.clock = c
	}
}

func (db *DB) now() int64 {
	if db.clock == nil {
		return time.Now().UnixMilli()
	}
	return db.clock.Now().UnixMilli()
}

// withTx runs fn in an immediate transaction, committing on success. A
// transaction that fails with SQLITE_BUSY is rolled back and run again, so
// fn must be safe to repeat.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err = db.runTx(ctx, fn); err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * txRetryDelay):
		}
	}
	return fmt.Errorf("database busy after %d attempts: %w", maxTxAttempts, err)
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
