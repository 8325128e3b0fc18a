// Copyright 2025 exprdb Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
)

// lockRetryInterval is how often a blocked writer re-attempts the advisory
// load lock.
const lockRetryInterval = 50 * time.Millisecond

// Store is a SQLite-backed score database: six relations plus the
// probe_blocks join, serving whole-matrix loads and ordered point queries.
type Store struct {
	path           string
	db             *sql.DB
	bunDB          *BunDB
	loadLock       *flock.Flock
	probeBatchSize int
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB) error {
	// Busy timeout MUST be set first — all subsequent PRAGMAs (especially
	// journal_mode=WAL which needs exclusive access) will wait for locks
	// instead of failing immediately with "database is locked".
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout())); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	// WAL mode: readers stay consistent while a load commits batches.
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	// synchronous=NORMAL: WAL mode with NORMAL sync is safe against process
	// crashes. Avoids fsync on every batch commit.
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Larger page cache: block-join queries touch many score_blocks pages.
	if err := execPragma(db, "PRAGMA cache_size = -8000"); err != nil {
		return fmt.Errorf("failed to set cache_size: %w", err)
	}

	return nil
}

// openDB opens the database file and pins the pool to a single connection
// before applying PRAGMAs. Session PRAGMAs bind only to the connection that
// runs them, so without the pin foreign_keys and cache_size would hold on
// one pooled connection and silently not on others.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Option configures a Store on open.
type Option func(*Store)

// WithProbeBatchSize overrides the number of probe rows per load transaction.
func WithProbeBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.probeBatchSize = n
		}
	}
}

// Create creates a new score database file.
func Create(path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s", path)
	}

	db, err := openDB(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	// Create schema (execute statements individually for libsql compatibility)
	if err := execStatements(db, scoreFileSchema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := execStatements(db, initScoreFile, SchemaVersion); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize schema info: %w", err)
	}

	return newStore(path, db, opts...), nil
}

// Open opens an existing score database file.
func Open(path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := newStore(path, db, opts...)

	// Verify it's a score database
	fileType, err := s.bunDB.GetSchemaInfo(context.Background(), "type")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}
	if fileType != "scores" {
		db.Close()
		return nil, fmt.Errorf("not a score database (type=%s)", fileType)
	}

	return s, nil
}

func newStore(path string, db *sql.DB, opts ...Option) *Store {
	s := &Store{
		path:           path,
		db:             db,
		bunDB:          NewBunDB(db),
		loadLock:       flock.New(path + ".lock"),
		probeBatchSize: DefaultProbeBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection and cleans up WAL files.
// It performs a TRUNCATE checkpoint to merge WAL data into the main database,
// then removes the -wal and -shm files.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	// Note: PRAGMA wal_checkpoint returns rows, so we must use Query() not Exec()
	rows, err := s.db.Query("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		log.Warnf("WAL checkpoint failed: %v", err)
	} else {
		rows.Close()
	}

	if err := s.db.Close(); err != nil {
		return err
	}

	os.Remove(s.path + "-wal") // Ignore errors - files may not exist
	os.Remove(s.path + "-shm")

	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying *sql.DB for use with Bun or other wrappers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BunDB returns the Bun database wrapper.
func (s *Store) BunDB() *BunDB {
	return s.bunDB
}

// lockForWrite takes the advisory load lock beside the database file so
// writer processes serialize. Readers never take it. Returns an unlock func.
func (s *Store) lockForWrite(ctx context.Context) (func(), error) {
	if _, err := s.loadLock.TryLockContext(ctx, lockRetryInterval); err != nil {
		return nil, fmt.Errorf("failed to acquire load lock: %w", err)
	}
	return func() {
		if err := s.loadLock.Unlock(); err != nil {
			log.Warnf("failed to release load lock: %v", err)
		}
	}, nil
}
