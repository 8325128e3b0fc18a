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

package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"exprdb/internal/storage"
	"exprdb/internal/tsv"
)

var (
	loadKey    string
	loadCohort string
)

var loadCmd = &cobra.Command{
	Use:   "load <matrix.tsv>",
	Short: "Load (or fully replace) an experiment matrix",
	Long: `Reads a tab-separated matrix (header row = sample names, first column =
probe names) and loads it under the given file key. Re-loading an existing
key replaces that experiment's whole matrix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		matrix, err := tsv.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read matrix: %w", err)
		}

		hash, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash matrix: %w", err)
		}

		key := loadKey
		if key == "" {
			key = filepath.Base(path)
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		err = s.Load(cmd.Context(), storage.LoadRequest{
			FileKey:     key,
			Cohort:      loadCohort,
			Timestamp:   time.Now(),
			ContentHash: hash,
			Samples:     matrix.Samples,
			Rows:        matrix.Rows,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %s: %d probes × %d samples\n", key, len(matrix.Rows), len(matrix.Samples))
		return nil
	},
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func init() {
	loadCmd.Flags().StringVar(&loadKey, "key", "", "experiment file key (default: matrix file name)")
	loadCmd.Flags().StringVar(&loadCohort, "cohort", "default", "cohort name")
	rootCmd.AddCommand(loadCmd)
}
