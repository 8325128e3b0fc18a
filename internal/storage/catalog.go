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

	"exprdb/internal/common"
)

// Dataset is one catalog entry: an experiment visible to readers.
type Dataset struct {
	Name       string `bun:"name"`
	Cohort     string `bun:"cohort"`
	LongLabel  string `bun:"long_label"`
	ShortLabel string `bun:"short_label"`
	N          int64  `bun:"n"`
}

// ListDatasets returns the catalog of queryable experiments. N is the real
// sample-column count of each experiment, not a placeholder. Experiments
// whose loaded flag is false (a load in progress, or one that died
// mid-matrix) are excluded rather than served partially. Labels default to
// the file key; richer display metadata is out of scope.
func (s *Store) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	err := s.bunDB.NewRaw(`
		SELECT e.file_key AS name,
		       c.name AS cohort,
		       e.file_key AS long_label,
		       e.file_key AS short_label,
		       (SELECT COUNT(*) FROM experiment_samples es WHERE es.experiment_id = e.id) AS n
		FROM experiments e
		JOIN cohorts c ON c.id = e.cohort_id
		WHERE e.loaded = 1
		ORDER BY e.file_key
	`).Scan(ctx, &datasets)
	if err != nil {
		return nil, fmt.Errorf("%w: list datasets: %w", common.ErrStore, err)
	}
	return datasets, nil
}
