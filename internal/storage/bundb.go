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

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"exprdb/internal/common"
)

// BunDB wraps a Bun database instance for type-safe queries.
type BunDB struct {
	*bun.DB
}

// NewBunDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewBunDB(sqlDB *sql.DB) *BunDB {
	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	return &BunDB{DB: bunDB}
}

// --- Schema Info Operations ---

// GetSchemaInfo retrieves a schema info value by key.
func (db *BunDB) GetSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// SetSchemaInfo sets a schema info value (upserts).
func (db *BunDB) SetSchemaInfo(ctx context.Context, key, value string) error {
	_, err := db.NewInsert().
		Model(&SchemaInfoModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

// --- Cohort Operations ---

// MergeCohort upserts a cohort by name and returns its id.
// Uses a RETURNING clause because libsql doesn't support LastInsertId; the
// DO UPDATE no-op makes RETURNING fire on the conflict path too.
func (db *BunDB) MergeCohort(idb bun.IDB, ctx context.Context, name string) (int64, error) {
	model := &CohortModel{Name: name}
	_, err := idb.NewInsert().
		Model(model).
		On("CONFLICT (name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return model.ID, nil
}

// GetCohort retrieves a cohort by id.
func (db *BunDB) GetCohort(ctx context.Context, id int64) (*CohortModel, error) {
	var cohort CohortModel
	err := db.NewSelect().
		Model(&cohort).
		Where("id = ?", id).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cohort, nil
}

// --- Experiment Operations ---

// MergeExperiment upserts an experiment by file_key, refreshing its metadata
// and forcing loaded=false (the load-in-progress marker) in the same
// statement. Returns the experiment id.
func (db *BunDB) MergeExperiment(idb bun.IDB, ctx context.Context, fileKey string, loadedAt int64, contentHash string, cohortID int64) (int64, error) {
	model := &ExperimentModel{
		FileKey:     fileKey,
		LoadedAt:    loadedAt,
		ContentHash: contentHash,
		CohortID:    cohortID,
		Loaded:      false,
	}
	_, err := idb.NewInsert().
		Model(model).
		On("CONFLICT (file_key) DO UPDATE").
		Set("loaded_at = EXCLUDED.loaded_at").
		Set("content_hash = EXCLUDED.content_hash").
		Set("cohort_id = EXCLUDED.cohort_id").
		Set("loaded = 0").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return model.ID, nil
}

// GetExperimentByFileKey retrieves an experiment by its external key.
// Returns common.ErrNotFound for unknown keys.
func (db *BunDB) GetExperimentByFileKey(ctx context.Context, fileKey string) (*ExperimentModel, error) {
	var exp ExperimentModel
	err := db.NewSelect().
		Model(&exp).
		Where("file_key = ?", fileKey).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// SetExperimentLoaded flips the loaded flag for an experiment.
func (db *BunDB) SetExperimentLoaded(ctx context.Context, expID int64, loaded bool) error {
	_, err := db.NewUpdate().
		Model((*ExperimentModel)(nil)).
		Set("loaded = ?", loaded).
		Where("id = ?", expID).
		Exec(ctx)
	return err
}

// DeleteExperimentRow deletes the experiment row itself. The caller must
// have cleared the experiment's dependent rows first.
func (db *BunDB) DeleteExperimentRow(idb bun.IDB, ctx context.Context, expID int64) error {
	_, err := idb.NewDelete().
		Model((*ExperimentModel)(nil)).
		Where("id = ?", expID).
		Exec(ctx)
	return err
}

// ClearExperiment removes every row owned by an experiment's current
// generation. Foreign keys are enforced, so referencing rows go before the
// rows they reference: experiment_samples links, then samples no
// longer referenced by any experiment, then the probe_blocks joins, then
// score blocks no longer referenced by any join (blocks still reachable
// through another experiment's probes survive), then the probes. Safe to
// run for a brand-new experiment (no-op cascade).
func (db *BunDB) ClearExperiment(idb bun.IDB, ctx context.Context, expID int64) error {
	if _, err := idb.NewDelete().
		Model((*ExperimentSampleModel)(nil)).
		Where("experiment_id = ?", expID).
		Exec(ctx); err != nil {
		return err
	}
	// Orphaned samples: no surviving experiment_samples reference anywhere.
	if _, err := idb.NewRaw(`
		DELETE FROM samples
		WHERE id NOT IN (SELECT DISTINCT sample_id FROM experiment_samples)
	`).Exec(ctx); err != nil {
		return err
	}
	if _, err := idb.NewRaw(`
		DELETE FROM probe_blocks
		WHERE probe_id IN (SELECT id FROM probes WHERE experiment_id = ?)
	`, expID).Exec(ctx); err != nil {
		return err
	}
	// Orphaned score blocks: with this experiment's joins gone, any block
	// still referenced belongs to another experiment and is kept.
	if _, err := idb.NewRaw(`
		DELETE FROM score_blocks
		WHERE id NOT IN (SELECT DISTINCT score_block_id FROM probe_blocks)
	`).Exec(ctx); err != nil {
		return err
	}
	if _, err := idb.NewDelete().
		Model((*ProbeModel)(nil)).
		Where("experiment_id = ?", expID).
		Exec(ctx); err != nil {
		return err
	}
	return nil
}

// --- Sample Operations ---

// MergeSample upserts a sample by (cohort_id, name) and returns its id.
func (db *BunDB) MergeSample(idb bun.IDB, ctx context.Context, cohortID int64, name string) (int64, error) {
	model := &SampleModel{CohortID: cohortID, Name: name}
	_, err := idb.NewInsert().
		Model(model).
		On("CONFLICT (cohort_id, name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return model.ID, nil
}

// InsertExperimentSample links a sample into an experiment at the given
// column ordinal.
func (db *BunDB) InsertExperimentSample(idb bun.IDB, ctx context.Context, expID, sampleID, ordinal int64) error {
	_, err := idb.NewInsert().
		Model(&ExperimentSampleModel{
			ExperimentID: expID,
			SampleID:     sampleID,
			Ordinal:      ordinal,
		}).
		Exec(ctx)
	return err
}

// SampleOrdinal pairs a sample name with its column ordinal in one experiment.
type SampleOrdinal struct {
	Name    string `bun:"name"`
	Ordinal int64  `bun:"ordinal"`
}

// SampleOrdinals resolves the ordinals of the requested sample names within
// an experiment. Names not present in the experiment are simply absent from
// the result. The join list is deliberately flat (left-associative).
func (db *BunDB) SampleOrdinals(ctx context.Context, expID int64, names []string) ([]SampleOrdinal, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var pairs []SampleOrdinal
	err := db.NewRaw(`
		SELECT s.name, es.ordinal
		FROM experiment_samples es
		JOIN samples s ON s.id = es.sample_id
		WHERE es.experiment_id = ? AND s.name IN (?)
	`, expID, bun.In(names)).Scan(ctx, &pairs)
	return pairs, err
}

// CountExperimentSamples returns the number of sample columns in an experiment.
func (db *BunDB) CountExperimentSamples(ctx context.Context, expID int64) (int64, error) {
	var n sql.NullInt64
	err := db.NewRaw(`SELECT COUNT(*) FROM experiment_samples WHERE experiment_id = ?`, expID).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n.Int64, nil
}

// --- Probe / Block Operations ---

// InsertProbe inserts a probe row and returns its id.
func (db *BunDB) InsertProbe(idb bun.IDB, ctx context.Context, expID int64, name string) (int64, error) {
	model := &ProbeModel{ExperimentID: expID, Name: name}
	_, err := idb.NewInsert().
		Model(model).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return model.ID, nil
}

// ExperimentProbeNames filters names down to those stored as probes of the
// experiment.
func (db *BunDB) ExperimentProbeNames(ctx context.Context, expID int64, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var found []string
	err := db.NewRaw(`
		SELECT name FROM probes WHERE experiment_id = ? AND name IN (?)
	`, expID, bun.In(names)).Scan(ctx, &found)
	return found, err
}

// InsertScoreBlock stores a block payload and returns its id. Dedup is the
// caller's concern (blockWriter); this always inserts a fresh row.
func (db *BunDB) InsertScoreBlock(idb bun.IDB, ctx context.Context, data []byte) (int64, error) {
	model := &ScoreBlockModel{Data: data}
	_, err := idb.NewInsert().
		Model(model).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return model.ID, nil
}

// InsertProbeBlock links the block_index-th chunk of a probe to a score block.
func (db *BunDB) InsertProbeBlock(idb bun.IDB, ctx context.Context, probeID, blockIndex, scoreBlockID int64) error {
	_, err := idb.NewInsert().
		Model(&ProbeBlockModel{
			ProbeID:      probeID,
			BlockIndex:   blockIndex,
			ScoreBlockID: scoreBlockID,
		}).
		Exec(ctx)
	return err
}

// ScoreRow is one (probe, bin) result of the score join: the probe's name,
// which storage bin the block covers, and the raw block payload.
type ScoreRow struct {
	ProbeName  string `bun:"probe_name"`
	BlockIndex int64  `bun:"block_index"`
	Data       []byte `bun:"data"`
}

// ScoreRows runs the probe ⋈ probe_blocks ⋈ score_blocks join for one
// experiment, restricted to the requested probe names and the bins the
// caller actually needs. The generated join list is flat, never nested.
func (db *BunDB) ScoreRows(ctx context.Context, expID int64, probeNames []string, bins []int64) ([]ScoreRow, error) {
	if len(probeNames) == 0 || len(bins) == 0 {
		return nil, nil
	}
	var rows []ScoreRow
	err := db.NewRaw(`
		SELECT p.name AS probe_name, pb.block_index, sb.data
		FROM probes p
		JOIN probe_blocks pb ON pb.probe_id = p.id
		JOIN score_blocks sb ON sb.id = pb.score_block_id
		WHERE p.experiment_id = ? AND p.name IN (?) AND pb.block_index IN (?)
	`, expID, bun.In(probeNames), bun.In(bins)).Scan(ctx, &rows)
	return rows, err
}

// --- Row Counts (tests and catalog) ---

// CountRows returns the row count of a table. Only used with fixed table
// names from this package.
func (db *BunDB) CountRows(ctx context.Context, table string) (int64, error) {
	var n sql.NullInt64
	err := db.NewRaw(`SELECT COUNT(*) FROM ` + table).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return n.Int64, nil
}
