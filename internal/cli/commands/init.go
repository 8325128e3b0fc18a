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
	"fmt"

	"github.com/spf13/cobra"

	"exprdb/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new score database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := storage.Create(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()
		fmt.Printf("Created score database at %s\n", s.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
