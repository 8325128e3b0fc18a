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
	"time"

	"github.com/uptrace/bun"
)

// Bun ORM models for the score database tables. Relationships are expressed
// as plain integer foreign-key fields and explicit joins; no declarative
// associations.

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// CohortModel represents the cohorts table
type CohortModel struct {
	bun.BaseModel `bun:"table:cohorts"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// ExperimentModel represents the experiments table. LoadedAt is a Unix
// timestamp; Loaded stays false from the start of a (re)load until the full
// matrix has committed.
type ExperimentModel struct {
	bun.BaseModel `bun:"table:experiments"`

	ID          int64  `bun:"id,pk,autoincrement"`
	FileKey     string `bun:"file_key,notnull,unique"`
	LoadedAt    int64  `bun:"loaded_at,notnull"`
	ContentHash string `bun:"content_hash,notnull"`
	CohortID    int64  `bun:"cohort_id,notnull"`
	Loaded      bool   `bun:"loaded,notnull"`
}

// LoadedTime returns LoadedAt as a time.Time.
func (m *ExperimentModel) LoadedTime() time.Time {
	return time.Unix(m.LoadedAt, 0)
}

// SampleModel represents the samples table. Unique per (cohort_id, name).
type SampleModel struct {
	bun.BaseModel `bun:"table:samples"`

	ID       int64  `bun:"id,pk,autoincrement"`
	CohortID int64  `bun:"cohort_id,notnull"`
	Name     string `bun:"name,notnull"`
}

// ExperimentSampleModel represents the experiment_samples table. Ordinal is
// the sample's fixed column position within the experiment's matrix.
type ExperimentSampleModel struct {
	bun.BaseModel `bun:"table:experiment_samples"`

	ExperimentID int64 `bun:"experiment_id,pk"`
	SampleID     int64 `bun:"sample_id,pk"`
	Ordinal      int64 `bun:"ordinal,notnull"`
}

// ProbeModel represents the probes table (row labels, e.g. genes).
type ProbeModel struct {
	bun.BaseModel `bun:"table:probes"`

	ID           int64  `bun:"id,pk,autoincrement"`
	ExperimentID int64  `bun:"experiment_id,notnull"`
	Name         string `bun:"name,notnull"`
}

// ScoreBlockModel represents the score_blocks table: a content-addressed
// payload of up to BlockSize consecutive float32 values.
type ScoreBlockModel struct {
	bun.BaseModel `bun:"table:score_blocks"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Data []byte `bun:"data,notnull"`
}

// ProbeBlockModel represents the probe_blocks join table: the block_index-th
// chunk of a probe's row maps to a score block. Distinct from a sample's
// ordinal — block_index addresses storage bins, ordinal addresses columns.
type ProbeBlockModel struct {
	bun.BaseModel `bun:"table:probe_blocks"`

	ProbeID      int64 `bun:"probe_id,pk"`
	BlockIndex   int64 `bun:"block_index,pk"`
	ScoreBlockID int64 `bun:"score_block_id,notnull"`
}
