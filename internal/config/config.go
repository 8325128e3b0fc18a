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

// Package config loads the exprdb settings file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// getConfigDir returns the config directory path.
// Uses EXPRDB_CONFIG_DIR env var if set, otherwise defaults to ~/.exprdb.
// Computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("EXPRDB_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".exprdb")
}

// ConfigDir returns the configuration directory path.
func ConfigDir() string {
	return getConfigDir()
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// DefaultDatabasePath returns the default score database location.
func DefaultDatabasePath() string {
	return filepath.Join(getConfigDir(), "scores.db")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// Settings represents the settings file at {config_dir}/settings.yaml.
type Settings struct {
	Database       string `yaml:"database"`         // score database path; default {config_dir}/scores.db
	Logging        string `yaml:"logging"`          // logging level: none, debug, info, trace (case insensitive)
	BusyTimeout    int    `yaml:"busy_timeout"`     // SQLite busy_timeout in ms; 0 = default
	ProbeBatchSize int    `yaml:"probe_batch_size"` // probe rows per load transaction; 0 = default
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Settings) ApplyDefaults() {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabasePath()
	}
}

// LoggingEnabled returns whether logging is enabled (any level other than "none" or empty).
func (cfg *Settings) LoggingEnabled() bool {
	level := strings.ToLower(cfg.Logging)
	return level != "" && level != "none"
}

// LogLevel returns the normalized (lowercase) logging level.
func (cfg *Settings) LogLevel() string {
	return strings.ToLower(cfg.Logging)
}

// LoadSettings loads the settings file. A missing file yields defaults.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFromPath(SettingsPath())
}

// LoadSettingsFromPath loads settings from a specific file path.
// Returns defaults if the file does not exist.
func LoadSettingsFromPath(path string) (*Settings, error) {
	var cfg Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyDefaults()
			return &cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
