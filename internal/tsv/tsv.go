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

// Package tsv reads tab-separated expression matrices: a header row of
// sample names (first cell is the row-label heading and is ignored),
// followed by one row per probe. Missing values ("", "NA", "NaN") decode
// to NaN.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"exprdb/internal/storage"
)

// Matrix is the parsed form of one expression matrix file.
type Matrix struct {
	Samples []string
	Rows    []storage.ProbeRow
}

// ReadFile parses the matrix file at path.
func ReadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a matrix from r.
func Read(r io.Reader) (*Matrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty matrix: missing header row")
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(header) < 2 {
		return nil, fmt.Errorf("header row has no sample columns")
	}
	samples := header[1:]

	m := &Matrix{Samples: samples}
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(samples)+1 {
			return nil, fmt.Errorf("line %d: %d value columns, header has %d samples",
				lineNo, len(fields)-1, len(samples))
		}
		values := make([]float32, len(samples))
		for i, field := range fields[1:] {
			v, err := parseScore(field)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", lineNo, i+2, err)
			}
			values[i] = v
		}
		m.Rows = append(m.Rows, storage.ProbeRow{Name: fields[0], Values: values})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseScore(field string) (float32, error) {
	switch strings.TrimSpace(field) {
	case "", "NA", "na", "NaN", "nan", "null":
		return float32(math.NaN()), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
	if err != nil {
		return 0, fmt.Errorf("bad score %q: %w", field, err)
	}
	return float32(v), nil
}
