// Package store implements the durable, single-file embedded relational
// store behind the event cache: schema, pragmas, migrations, and the
// transaction boundary every write funnels through.
//
// The store is SQLite via database/sql + mattn/go-sqlite3, configured
// for write-ahead logging and a single writer connection, adapted from
// the teacher's embedded event-log store to calendar events and their
// raw source bytes.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bencan1a/calendarbot/internal/errs"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion tracks PRAGMA user_version for forward-only,
// linear migrations.
const currentSchemaVersion = 1

// Store provides durable storage for calendar events, their raw source
// bytes, and cache freshness metadata.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
	path    string
}

// Open creates or opens a SQLite database at path, applying pragmas and
// migrations. The parent directory is created if absent. Open is
// idempotent: calling it again against the same path is safe.
//
// Two connections are kept: a single-connection writer (SQLite permits
// only one writer at a time) and a read-only connection for concurrent
// readers, matching the single-writer/multiple-readers concurrency
// model under WAL.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.CodeStoreInit, "create database directory", err)
		}
	}

	writeDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStoreInit, "open database", err)
	}
	if err := writeDB.Ping(); err != nil {
		writeDB.Close()
		return nil, errs.Wrap(errs.CodeStoreInit, "connect to database", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	if err := applyPragmas(writeDB); err != nil {
		writeDB.Close()
		return nil, errs.Wrap(errs.CodeStoreInit, "apply pragmas", err)
	}
	if err := applySchema(writeDB); err != nil {
		writeDB.Close()
		return nil, errs.Wrap(errs.CodeStoreInit, "apply schema", err)
	}

	readDSN := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", path)
	readDB, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		writeDB.Close()
		return nil, errs.Wrap(errs.CodeStoreInit, "open read connection", err)
	}
	if err := readDB.Ping(); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, errs.Wrap(errs.CodeStoreInit, "connect read-only database", err)
	}

	return &Store{writeDB: writeDB, readDB: readDB, path: path}, nil
}

// Close closes both database connections.
func (s *Store) Close() error {
	var firstErr error
	if s.writeDB != nil {
		if err := s.writeDB.Close(); err != nil {
			firstErr = err
		}
	}
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("execute %q: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on
// PRAGMA user_version. Migrations are linear and forward-only.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	// No migrations beyond the base schema yet; bump currentSchemaVersion
	// and add a step here when one is introduced.
	_ = version

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction on the writer connection,
// committing on success and rolling back on error or panic. The whole
// attempt is retried up to the configured budget when it fails with
// lock contention (SQLITE_BUSY/SQLITE_LOCKED).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withRetry(ctx, func() error {
		tx, err := s.writeDB.BeginTx(ctx, nil)
		if err != nil {
			return classifyExecError(err)
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return classifyExecError(err)
		}
		return nil
	})
}
