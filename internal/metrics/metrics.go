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

// Package metrics exposes Prometheus collectors for load and query activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoadsTotal counts completed matrix loads.
	LoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exprdb",
		Name:      "loads_total",
		Help:      "Completed matrix loads.",
	})

	// LoadFailures counts loads that aborted with an error.
	LoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exprdb",
		Name:      "load_failures_total",
		Help:      "Matrix loads aborted by an error.",
	})

	// LoadDuration observes wall time of whole-matrix loads.
	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exprdb",
		Name:      "load_duration_seconds",
		Help:      "Wall time of whole-matrix loads.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// BlocksStored counts score block rows inserted by loads.
	BlocksStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exprdb",
		Name:      "score_blocks_stored_total",
		Help:      "Score block rows inserted.",
	})

	// BlocksDeduped counts blocks reused through in-load deduplication.
	BlocksDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exprdb",
		Name:      "score_blocks_deduped_total",
		Help:      "Score blocks reused via in-load dedup instead of inserted.",
	})

	// QueryDuration observes wall time of read queries.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exprdb",
		Name:      "query_duration_seconds",
		Help:      "Wall time of read queries.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)
