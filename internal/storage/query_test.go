package storage

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exprdb/internal/common"
)

func TestRead_ColumnAlignment(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1", "s2", "s3"}, []ProbeRow{
		{Name: "P1", Values: []float32{1, 2, 3}},
	})

	// Requested column order drives output order, not storage order.
	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s3", "s1"},
		Probes:  []string{"P1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, data["P1"])
}

func TestRead_MissingSampleIsNaN(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1", "s2"}, []ProbeRow{
		{Name: "P1", Values: []float32{1, 2}},
	})

	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s1", "unknown", "s2"},
		Probes:  []string{"P1"},
	})
	require.NoError(t, err)
	row := data["P1"]
	require.Len(t, row, 3)
	assert.Equal(t, float32(1), row[0])
	assert.True(t, math.IsNaN(float64(row[1])))
	assert.Equal(t, float32(2), row[2])
}

func TestRead_AbsentProbesOmitted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1"}, []ProbeRow{
		{Name: "P1", Values: []float32{1}},
	})

	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s1"},
		Probes:  []string{"P1", "P_absent"},
	})
	require.NoError(t, err)
	assert.Contains(t, data, "P1")
	assert.NotContains(t, data, "P_absent")
	assert.Len(t, data, 1)
}

func TestRead_MultiBin(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// 250 columns span three storage bins; pick columns from each bin.
	n := 2*BlockSize + 50
	samples := sampleNames(n)
	loadTestMatrix(t, s, "exp1", "cohortA", samples, []ProbeRow{
		{Name: "P1", Values: seq(n, 0)},
	})

	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s0", "s99", "s100", "s175", "s249"},
		Probes:  []string{"P1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 99, 100, 175, 249}, data["P1"])
}

func TestRead_NoMatchingSamplesKeepsStoredProbes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1", "s2"}, []ProbeRow{
		{Name: "P1", Values: []float32{1, 2}},
	})

	// No requested sample exists in the experiment: stored probes still get
	// an all-NaN row, probes the experiment lacks stay absent.
	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"zz", "zz2"},
		Probes:  []string{"P1", "P_absent"},
	})
	require.NoError(t, err)
	require.Contains(t, data, "P1")
	assert.NotContains(t, data, "P_absent")
	require.Len(t, data["P1"], 2)
	for i, v := range data["P1"] {
		assert.True(t, math.IsNaN(float64(v)), "column %d", i)
	}
}

func TestRead_UnknownExperiment(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Read(context.Background(), ReadRequest{
		FileKey: "no-such-key",
		Samples: []string{"s1"},
		Probes:  []string{"P1"},
	})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestRead_NotLoaded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1"}, []ProbeRow{
		{Name: "P1", Values: []float32{1}},
	})
	exp, err := s.BunDB().GetExperimentByFileKey(ctx, "exp1")
	require.NoError(t, err)
	require.NoError(t, s.BunDB().SetExperimentLoaded(ctx, exp.ID, false))

	_, err = s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s1"},
		Probes:  []string{"P1"},
	})
	assert.True(t, errors.Is(err, common.ErrNotLoaded))
}

func TestRead_EmptyRequests(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1"}, []ProbeRow{
		{Name: "P1", Values: []float32{1}},
	})

	data, err := s.Read(ctx, ReadRequest{FileKey: "exp1", Samples: nil, Probes: []string{"P1"}})
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = s.Read(ctx, ReadRequest{FileKey: "exp1", Samples: []string{"s1"}, Probes: nil})
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRead_DuplicateRequestedSamples(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1", "s2"}, []ProbeRow{
		{Name: "P1", Values: []float32{1, 2}},
	})

	// A repeated name fills only its first position; later copies stay NaN.
	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s2", "s2", "s1"},
		Probes:  []string{"P1"},
	})
	require.NoError(t, err)
	row := data["P1"]
	require.Len(t, row, 3)
	assert.Equal(t, float32(2), row[0])
	assert.True(t, math.IsNaN(float64(row[1])))
	assert.Equal(t, float32(1), row[2])
}

func TestRead_StoredNaNSurvives(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	nan := float32(math.NaN())
	loadTestMatrix(t, s, "exp1", "cohortA", []string{"s1", "s2"}, []ProbeRow{
		{Name: "P1", Values: []float32{nan, 2}},
	})

	data, err := s.Read(ctx, ReadRequest{
		FileKey: "exp1",
		Samples: []string{"s1", "s2"},
		Probes:  []string{"P1"},
	})
	require.NoError(t, err)
	row := data["P1"]
	assert.True(t, math.IsNaN(float64(row[0])))
	assert.Equal(t, float32(2), row[1])
}

func TestListDatasets(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", sampleNames(3), []ProbeRow{
		{Name: "P1", Values: seq(3, 0)},
	})
	loadTestMatrix(t, s, "exp2", "cohortB", sampleNames(5), []ProbeRow{
		{Name: "P1", Values: seq(5, 0)},
	})

	datasets, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 2)

	byName := make(map[string]Dataset, len(datasets))
	for _, d := range datasets {
		byName[d.Name] = d
	}
	assert.Equal(t, "cohortA", byName["exp1"].Cohort)
	assert.EqualValues(t, 3, byName["exp1"].N)
	assert.Equal(t, "cohortB", byName["exp2"].Cohort)
	assert.EqualValues(t, 5, byName["exp2"].N)
}

func TestListDatasets_ExcludesUnloaded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loadTestMatrix(t, s, "exp1", "cohortA", sampleNames(2), []ProbeRow{
		{Name: "P1", Values: seq(2, 0)},
	})
	exp, err := s.BunDB().GetExperimentByFileKey(ctx, "exp1")
	require.NoError(t, err)
	require.NoError(t, s.BunDB().SetExperimentLoaded(ctx, exp.ID, false))

	datasets, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestLoadReadEndToEnd(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	samples := sampleNames(7)
	loadTestMatrix(t, s, "e2e", "cohortA", samples, []ProbeRow{
		{Name: "A", Values: seq(7, 10)},
		{Name: "B", Values: seq(7, 100)},
	})

	data, err := s.Read(ctx, ReadRequest{
		FileKey: "e2e",
		Samples: []string{"s6", "s0", "s3"},
		Probes:  []string{"B", "A"},
	})
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, []float32{16, 10, 13}, data["A"])
	assert.Equal(t, []float32{106, 100, 103}, data["B"])
}
