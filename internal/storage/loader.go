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
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"exprdb/internal/codec"
	"exprdb/internal/common"
	"exprdb/internal/metrics"
	"exprdb/internal/util"
)

// ProbeRow is one matrix row: a probe name and its scores, aligned to the
// experiment's sample order.
type ProbeRow struct {
	Name   string
	Values []float32
}

// LoadRequest describes one whole-matrix load. Samples order is significant:
// it defines the column ordinals of the stored matrix.
type LoadRequest struct {
	FileKey     string
	Cohort      string
	Timestamp   time.Time
	ContentHash string
	Samples     []string
	Rows        []ProbeRow
}

// Load upserts the cohort, experiment, and samples, cascades out the
// experiment's previous generation, and writes the new matrix in probe
// batches. Re-loading a file key always replaces the whole matrix, never
// merges values. The experiment's loaded flag is false from the first
// mutation until the final batch commits; on any error it stays false and
// the error is surfaced wrapped in common.ErrStore. No automatic retry
// beyond transient lock retries at the transaction boundary.
func (s *Store) Load(ctx context.Context, req LoadRequest) error {
	for _, row := range req.Rows {
		if len(row.Values) != len(req.Samples) {
			return fmt.Errorf("%w: probe %q has %d values, experiment has %d samples",
				common.ErrShape, row.Name, len(row.Values), len(req.Samples))
		}
	}

	unlock, err := s.lockForWrite(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	defer unlock()

	start := time.Now()
	logger := log.WithFields(log.Fields{
		"load":    uuid.New().String(),
		"fileKey": req.FileKey,
		"cohort":  req.Cohort,
		"samples": len(req.Samples),
		"probes":  len(req.Rows),
	})
	logger.Info("load started")

	if err := s.load(ctx, req, logger); err != nil {
		metrics.LoadFailures.Inc()
		logger.WithError(err).Error("load failed, experiment remains unloaded")
		return err
	}

	metrics.LoadsTotal.Inc()
	metrics.LoadDuration.Observe(time.Since(start).Seconds())
	logger.WithField("elapsed", time.Since(start)).Info("load complete")
	return nil
}

func (s *Store) load(ctx context.Context, req LoadRequest, logger *log.Entry) error {
	// Steps 1-2: upsert cohort + experiment, then cascade out the previous
	// generation. One transaction; loaded flips to false before any data
	// mutation because MergeExperiment forces it in the upsert itself.
	var expID int64
	err := util.Retry(ctx, func() error {
		return s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			cohortID, err := s.bunDB.MergeCohort(tx, ctx, req.Cohort)
			if err != nil {
				return fmt.Errorf("merge cohort: %w", err)
			}
			expID, err = s.bunDB.MergeExperiment(tx, ctx, req.FileKey, req.Timestamp.Unix(), req.ContentHash, cohortID)
			if err != nil {
				return fmt.Errorf("merge experiment: %w", err)
			}
			if err := s.bunDB.ClearExperiment(tx, ctx, expID); err != nil {
				return fmt.Errorf("clear experiment: %w", err)
			}

			// Steps 3-4: upsert samples in request order and fix their
			// column ordinals.
			for i, name := range req.Samples {
				sampleID, err := s.bunDB.MergeSample(tx, ctx, cohortID, name)
				if err != nil {
					return fmt.Errorf("merge sample %q: %w", name, err)
				}
				if err := s.bunDB.InsertExperimentSample(tx, ctx, expID, sampleID, int64(i)); err != nil {
					return fmt.Errorf("link sample %q: %w", name, err)
				}
			}
			return nil
		})
	}, util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}

	// Step 5: the matrix itself, in independent probe-batch transactions.
	// The dedup writer spans the whole load call but never outlives it.
	writer := newBlockWriter(s.bunDB)
	for begin := 0; begin < len(req.Rows); begin += s.probeBatchSize {
		end := min(begin+s.probeBatchSize, len(req.Rows))
		batch := req.Rows[begin:end]

		err := util.Retry(ctx, func() error {
			return s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				return s.loadBatch(tx, ctx, expID, batch, writer)
			})
		}, util.DatabaseRetryOptions(ctx)...)
		if err != nil {
			return fmt.Errorf("%w: load batch at probe %d: %w", common.ErrStore, begin, err)
		}
	}
	metrics.BlocksStored.Add(float64(writer.inserted))
	metrics.BlocksDeduped.Add(float64(writer.reused))

	if err := s.bunDB.SetExperimentLoaded(ctx, expID, true); err != nil {
		return fmt.Errorf("%w: mark loaded: %w", common.ErrStore, err)
	}
	logger.WithFields(log.Fields{
		"blocksStored": writer.inserted,
		"blocksReused": writer.reused,
	}).Debug("matrix written")
	return nil
}

// loadBatch writes a contiguous run of probe rows: the probe record, its
// row chunked into BlockSize-wide blocks, and one probe_blocks join per
// chunk. The final chunk keeps its true length; no zero padding.
func (s *Store) loadBatch(tx bun.Tx, ctx context.Context, expID int64, batch []ProbeRow, writer *blockWriter) error {
	for _, row := range batch {
		probeID, err := s.bunDB.InsertProbe(tx, ctx, expID, row.Name)
		if err != nil {
			return fmt.Errorf("insert probe %q: %w", row.Name, err)
		}
		for begin := 0; begin < len(row.Values); begin += BlockSize {
			end := min(begin+BlockSize, len(row.Values))
			blockID, err := writer.store(tx, ctx, codec.Encode(row.Values[begin:end]))
			if err != nil {
				return fmt.Errorf("store block for probe %q: %w", row.Name, err)
			}
			if err := s.bunDB.InsertProbeBlock(tx, ctx, probeID, int64(begin/BlockSize), blockID); err != nil {
				return fmt.Errorf("link block for probe %q: %w", row.Name, err)
			}
		}
	}
	return nil
}

// Delete removes an experiment and everything it exclusively owns: probes,
// joins, score blocks not referenced by another experiment, sample links,
// and samples orphaned by the removal. Fails with common.ErrNotFound for an
// unknown file key.
func (s *Store) Delete(ctx context.Context, fileKey string) error {
	exp, err := s.bunDB.GetExperimentByFileKey(ctx, fileKey)
	if err != nil {
		return err
	}

	unlock, err := s.lockForWrite(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	defer unlock()

	err = util.Retry(ctx, func() error {
		return s.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := s.bunDB.ClearExperiment(tx, ctx, exp.ID); err != nil {
				return err
			}
			return s.bunDB.DeleteExperimentRow(tx, ctx, exp.ID)
		})
	}, util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("%w: delete %q: %w", common.ErrStore, fileKey, err)
	}

	log.WithField("fileKey", fileKey).Info("experiment deleted")
	return nil
}
