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
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"exprdb/internal/codec"
	"exprdb/internal/common"
	"exprdb/internal/metrics"
)

// ReadRequest asks for a probe × sample sub-matrix of one experiment.
// Samples order is significant: output values are positionally aligned to it.
type ReadRequest struct {
	FileKey string
	Samples []string
	Probes  []string
}

// scatter maps one decoded block offset to a destination index in the
// caller-ordered output slice.
type scatter struct {
	offset int64
	dst    int
}

// Read resolves the experiment, computes bin/offset addressing for the
// requested samples, and scatters the joined score blocks into per-probe
// output slices ordered by the caller's sample list.
//
// Each returned slice has exactly len(req.Samples) elements; positions whose
// sample is not in the experiment hold NaN. Probes with no stored rows are
// omitted from the map entirely — absence means probe-not-in-experiment,
// never an all-NaN row.
//
// An unknown file key fails with common.ErrNotFound. An experiment whose
// load never completed (loaded=false) fails with common.ErrNotLoaded rather
// than serving a possibly partial matrix.
func (s *Store) Read(ctx context.Context, req ReadRequest) (map[string][]float32, error) {
	start := time.Now()

	exp, err := s.bunDB.GetExperimentByFileKey(ctx, req.FileKey)
	if err != nil {
		return nil, err
	}
	if !exp.Loaded {
		return nil, fmt.Errorf("%w: %q", common.ErrNotLoaded, req.FileKey)
	}

	result := make(map[string][]float32)
	if len(req.Samples) == 0 || len(req.Probes) == 0 {
		return result, nil
	}

	// Which of the requested samples exist in this experiment, and at which
	// stored column ordinal.
	pairs, err := s.bunDB.SampleOrdinals(ctx, exp.ID, req.Samples)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve samples: %w", common.ErrStore, err)
	}

	// Rank of each requested sample in the caller's order; duplicate names
	// keep the first position.
	rank := make(map[string]int, len(req.Samples))
	for i, name := range req.Samples {
		if _, ok := rank[name]; !ok {
			rank[name] = i
		}
	}

	// Per-bin scatter lists reconcile three orderings: physical bin/offset
	// layout, the experiment's stored sample order, and the caller's
	// requested order.
	scatters := make(map[int64][]scatter)
	for _, p := range pairs {
		bin := p.Ordinal / BlockSize
		scatters[bin] = append(scatters[bin], scatter{
			offset: p.Ordinal % BlockSize,
			dst:    rank[p.Name],
		})
	}
	if len(scatters) == 0 {
		// None of the requested samples exist in this experiment. Probes the
		// experiment does store still get an all-NaN row, so absence keeps
		// meaning probe-not-in-experiment.
		names, err := s.bunDB.ExperimentProbeNames(ctx, exp.ID, req.Probes)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve probes: %w", common.ErrStore, err)
		}
		for _, name := range names {
			row := make([]float32, len(req.Samples))
			for i := range row {
				row[i] = float32(math.NaN())
			}
			result[name] = row
		}
		return result, nil
	}
	bins := make([]int64, 0, len(scatters))
	for bin := range scatters {
		bins = append(bins, bin)
	}

	rows, err := s.bunDB.ScoreRows(ctx, exp.ID, req.Probes, bins)
	if err != nil {
		return nil, fmt.Errorf("%w: score join: %w", common.ErrStore, err)
	}

	// Each stored block is decoded once and distributed to every requested
	// position that lands in its bin.
	nan := float32(math.NaN())
	for _, row := range rows {
		values, err := codec.Decode(row.Data)
		if err != nil {
			return nil, fmt.Errorf("probe %q bin %d: %w", row.ProbeName, row.BlockIndex, err)
		}
		out, ok := result[row.ProbeName]
		if !ok {
			out = make([]float32, len(req.Samples))
			for i := range out {
				out[i] = nan
			}
			result[row.ProbeName] = out
		}
		for _, sc := range scatters[row.BlockIndex] {
			if sc.offset < int64(len(values)) {
				out[sc.dst] = values[sc.offset]
			}
		}
	}

	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"fileKey": req.FileKey,
		"probes":  len(result),
		"bins":    len(bins),
		"elapsed": time.Since(start),
	}).Debug("read complete")
	return result, nil
}
