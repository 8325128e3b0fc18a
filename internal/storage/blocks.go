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

	"github.com/uptrace/bun"
)

// blockWriter deduplicates score blocks within the scope of one matrix load.
// Identity is exact byte equality: the map is keyed by the full block
// content, so two blocks share a row only when their bytes match — a hash
// collision can never alias distinct blocks. A writer is created at the
// start of each Load call and discarded at its end; it is never shared
// across calls.
type blockWriter struct {
	db   *BunDB
	seen map[string]int64 // block bytes → score_blocks.id

	inserted int64
	reused   int64
}

func newBlockWriter(db *BunDB) *blockWriter {
	return &blockWriter{
		db:   db,
		seen: make(map[string]int64),
	}
}

// store returns the score block id for blob, inserting a new row only when
// an identical block has not been stored earlier in this load.
func (w *blockWriter) store(idb bun.IDB, ctx context.Context, blob []byte) (int64, error) {
	key := string(blob)
	if id, ok := w.seen[key]; ok {
		w.reused++
		return id, nil
	}
	id, err := w.db.InsertScoreBlock(idb, ctx, blob)
	if err != nil {
		return 0, err
	}
	w.seen[key] = id
	w.inserted++
	return id, nil
}
