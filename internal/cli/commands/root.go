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
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"exprdb/internal/config"
	"exprdb/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// dbPath is the resolved score database path for this invocation.
var dbPath string

// settings holds the loaded settings file for this invocation.
var settings *config.Settings

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		return fmt.Sprintf("%s (%s, commit: %s)", version, buildDate, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var rootCmd = &cobra.Command{
	Use:   "exprdb",
	Short: "Genomic expression matrix store",
	Long: `Stores probe × sample float32 expression matrices keyed by experiment
and answers ordered point queries over (experiment, samples, probes).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var err error
		settings, err = config.LoadSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		storage.SetConfigBusyTimeout(settings.BusyTimeout)

		if dbPath == "" {
			dbPath = settings.Database
		}

		switch settings.LogLevel() {
		case "trace":
			log.SetLevel(log.TraceLevel)
		case "debug":
			log.SetLevel(log.DebugLevel)
		case "", "none":
			log.SetLevel(log.WarnLevel)
		default:
			log.SetLevel(log.InfoLevel)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "score database path (default from settings)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// openStore opens the score database configured for this invocation.
func openStore() (*storage.Store, error) {
	var opts []storage.Option
	if settings != nil && settings.ProbeBatchSize > 0 {
		opts = append(opts, storage.WithProbeBatchSize(settings.ProbeBatchSize))
	}
	return storage.Open(dbPath, opts...)
}
