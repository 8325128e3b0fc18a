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

package common

import "errors"

var (
	// ErrNotFound is returned when an experiment (or other entity) does not
	// exist for the given key. Queries against unknown experiments must fail
	// with this error rather than returning an empty result.
	ErrNotFound = errors.New("not found")

	// ErrMalformedBlob is returned by the codec when a score blob's length
	// is not a multiple of 4 bytes.
	ErrMalformedBlob = errors.New("malformed score blob")

	// ErrStore is the wrap base for store-level failures: constraint
	// violations, connectivity problems, aborted transactions.
	ErrStore = errors.New("store error")

	// ErrNotLoaded is returned when a query targets an experiment whose
	// loaded flag is false (a load is in progress or a prior load died
	// mid-matrix). The data may be structurally inconsistent.
	ErrNotLoaded = errors.New("experiment not loaded")

	// ErrShape is returned when a matrix row's value count does not match
	// the experiment's sample count.
	ErrShape = errors.New("row length does not match sample count")
)
