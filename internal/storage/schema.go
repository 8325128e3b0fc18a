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
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const SchemaVersion = "1"

// BlockSize is the number of float32 scores per stored block. A sample at
// column ordinal n lives in bin n/BlockSize at offset n%BlockSize.
const BlockSize = 100

// DefaultProbeBatchSize is the number of probe rows committed per
// transaction during a matrix load. Each batch commits independently, so a
// fault mid-load leaves the experiment partially written with loaded=false.
const DefaultProbeBatchSize = 100

// Default busy_timeout in milliseconds (30 seconds)
const DefaultBusyTimeout = 30000

// EnvBusyTimeout overrides the SQLite busy_timeout for all connections.
const EnvBusyTimeout = "EXPRDB_BUSY_TIMEOUT"

// Package-level config value (set via SetConfigBusyTimeout)
var configBusyTimeout int

// SetConfigBusyTimeout sets the config-based busy_timeout value.
// A value of 0 is ignored (use env var or default).
func SetConfigBusyTimeout(timeout int) {
	configBusyTimeout = timeout
}

// GetBusyTimeout returns the busy_timeout in milliseconds.
// Priority: env > config file > default.
func GetBusyTimeout() int {
	if val := os.Getenv(EnvBusyTimeout); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
			return timeout
		}
	}
	if configBusyTimeout > 0 {
		return configBusyTimeout
	}
	return DefaultBusyTimeout
}

// BuildDSN builds the SQLite DSN for a score database file.
func BuildDSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, GetBusyTimeout())
}

// Schema SQL for a score database. Six relations plus the probe_blocks join
// table. Deletion order during a cascade clear is: experiment_samples,
// orphaned samples, probe_blocks, orphaned score_blocks, probes.
const scoreFileSchema = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Logical grouping of experiments and samples
CREATE TABLE IF NOT EXISTS cohorts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

-- One uploaded matrix, keyed externally by file_key.
-- loaded=0 from the moment a (re)load begins until the full matrix commits.
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_key TEXT NOT NULL UNIQUE,
    loaded_at INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT NOT NULL DEFAULT '',
    cohort_id INTEGER NOT NULL REFERENCES cohorts(id),
    loaded INTEGER NOT NULL DEFAULT 0
);

-- Samples are unique per (cohort, name); retained while any experiment
-- references them, purged as orphans at clear time.
CREATE TABLE IF NOT EXISTS samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cohort_id INTEGER NOT NULL REFERENCES cohorts(id),
    name TEXT NOT NULL,
    UNIQUE (cohort_id, name)
);

-- Membership + fixed column position of a sample within an experiment
CREATE TABLE IF NOT EXISTS experiment_samples (
    experiment_id INTEGER NOT NULL REFERENCES experiments(id),
    sample_id INTEGER NOT NULL REFERENCES samples(id),
    ordinal INTEGER NOT NULL,
    PRIMARY KEY (experiment_id, sample_id)
);

CREATE INDEX IF NOT EXISTS idx_experiment_samples_ordinal ON experiment_samples(experiment_id, ordinal);

-- Row labels (genes/probes), owned by one experiment
CREATE TABLE IF NOT EXISTS probes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_id INTEGER NOT NULL REFERENCES experiments(id),
    name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_probes_experiment_name ON probes(experiment_id, name);

-- Content-addressed score payloads: up to BlockSize little-endian float32
-- values. The final block of a probe row may be shorter; its true length is
-- carried by the blob size, never by zero padding.
CREATE TABLE IF NOT EXISTS score_blocks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    data BLOB NOT NULL
);

-- Maps the block_index-th chunk of a probe's row to a stored block.
-- Many probes may reference the same block (dedup).
CREATE TABLE IF NOT EXISTS probe_blocks (
    probe_id INTEGER NOT NULL REFERENCES probes(id),
    block_index INTEGER NOT NULL,
    score_block_id INTEGER NOT NULL REFERENCES score_blocks(id),
    PRIMARY KEY (probe_id, block_index)
);

CREATE INDEX IF NOT EXISTS idx_probe_blocks_block ON probe_blocks(score_block_id);
`

const initScoreFile = `
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('version', ?);
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('type', 'scores');
INSERT OR IGNORE INTO schema_info (key, value) VALUES ('created_at', datetime('now'));
`

// execStatements executes multiple SQL statements separated by semicolons.
// libsql driver doesn't support multi-statement Exec, so we split and execute individually.
func execStatements(db *sql.DB, sqlScript string, args ...interface{}) error {
	statements := splitStatements(sqlScript)
	argIdx := 0
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		placeholders := strings.Count(stmt, "?")
		stmtArgs := args[argIdx : argIdx+placeholders]
		argIdx += placeholders
		if _, err := db.Exec(stmt, stmtArgs...); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements splits a SQL script into individual statements
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	lines := strings.Split(script, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Skip comments and empty lines
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
