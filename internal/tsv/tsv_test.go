package tsv

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	input := "probe\ts1\ts2\ts3\n" +
		"P1\t1.5\t2\t-3.25\n" +
		"P2\tNA\t\tNaN\n"

	m, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2", "s3"}, m.Samples)
	require.Len(t, m.Rows, 2)

	assert.Equal(t, "P1", m.Rows[0].Name)
	assert.Equal(t, []float32{1.5, 2, -3.25}, m.Rows[0].Values)

	assert.Equal(t, "P2", m.Rows[1].Name)
	for i, v := range m.Rows[1].Values {
		assert.True(t, math.IsNaN(float64(v)), "column %d", i)
	}
}

func TestRead_CRLFAndBlankLines(t *testing.T) {
	input := "probe\ts1\ts2\r\nP1\t1\t2\r\n\r\nP2\t3\t4\r\n"

	m, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, []float32{1, 2}, m.Rows[0].Values)
	assert.Equal(t, []float32{3, 4}, m.Rows[1].Values)
}

func TestRead_ShapeMismatch(t *testing.T) {
	input := "probe\ts1\ts2\nP1\t1\n"

	_, err := Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestRead_BadScore(t *testing.T) {
	input := "probe\ts1\nP1\tnot-a-number\n"

	_, err := Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-number")
}

func TestRead_EmptyInput(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	require.Error(t, err)

	// Header only is valid: zero probes.
	m, err := Read(strings.NewReader("probe\ts1\n"))
	require.NoError(t, err)
	assert.Empty(t, m.Rows)
}

func TestRead_HeaderWithoutSamples(t *testing.T) {
	_, err := Read(strings.NewReader("probe\n"))
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.tsv")
	require.NoError(t, os.WriteFile(path, []byte("probe\ts1\nP1\t7\n"), 0o644))

	m, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, m.Rows[0].Values)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.tsv"))
	require.Error(t, err)
}
