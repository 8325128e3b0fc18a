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
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"exprdb/internal/storage"
)

var (
	querySamples []string
	queryProbes  []string
)

var queryCmd = &cobra.Command{
	Use:   "query <file-key>",
	Short: "Read a probe × sample sub-matrix of one experiment",
	Long: `Prints one row per probe with values aligned to the requested sample
order. Samples absent from the experiment print as NaN; probes absent from
the experiment are omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		data, err := s.Read(cmd.Context(), storage.ReadRequest{
			FileKey: args[0],
			Samples: querySamples,
			Probes:  queryProbes,
		})
		if err != nil {
			return err
		}

		probes := make([]string, 0, len(data))
		for name := range data {
			probes = append(probes, name)
		}
		sort.Strings(probes)

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "probe\t%s\n", strings.Join(querySamples, "\t"))
		for _, name := range probes {
			cells := make([]string, len(data[name]))
			for i, v := range data[name] {
				cells[i] = fmt.Sprintf("%g", v)
			}
			fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(cells, "\t"))
		}
		return w.Flush()
	},
}

func init() {
	queryCmd.Flags().StringSliceVar(&querySamples, "samples", nil, "sample names, in output order")
	queryCmd.Flags().StringSliceVar(&queryProbes, "probes", nil, "probe names to read")
	queryCmd.MarkFlagRequired("samples")
	queryCmd.MarkFlagRequired("probes")
	rootCmd.AddCommand(queryCmd)
}
