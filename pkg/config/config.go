/*
Package config manages TOML config for the IME core daemon.

InitConfig handles automatic config file creation and loading with fallback
to defaults. LoadConfig and SaveConfig provide direct fs access for runtime
changes. Update allows targeted parameter changes with persistence.

This mirrors the §6 config-key surface but as a TOML file read at process
start. The values the core uses during a run live in Storage's config
table (internal/storage), which seeds its own defaults; nothing copies the
values of this file into Storage, and the file is not re-read while the
process runs.
*/
package config

import (
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/utils"
)

// Config holds the entire config structure.
type Config struct {
	Input     InputConfig     `toml:"input"`
	Frequency FrequencyConfig `toml:"frequency"`
	Learning  LearningConfig  `toml:"learning"`
	Cloud     CloudConfig     `toml:"cloud"`
}

// InputConfig holds session/dispatch options.
type InputConfig struct {
	DefaultMode    string `toml:"default_mode"`
	PageSize       int    `toml:"page_size"`
	FullwidthPunct bool   `toml:"fullwidth_punct"`
}

// FrequencyConfig holds C3 scoring weights.
type FrequencyConfig struct {
	UserWeight       float64 `toml:"user_weight"`
	BaseWeight       float64 `toml:"base_weight"`
	RecencyWeight    float64 `toml:"recency_weight"`
	RecencyDecayDays int     `toml:"recency_decay_days"`
	MaxUserFrequency int64   `toml:"max_user_frequency"`
}

// LearningConfig holds C6 phrase-mining parameters.
type LearningConfig struct {
	Enabled        bool `toml:"enabled"`
	MinOccurrences int  `toml:"min_occurrences"`
	MaxInterval    int  `toml:"max_interval"`
}

// CloudConfig is reserved for the dictionary-update signal (non-goal:
// the core never performs the download itself).
type CloudConfig struct {
	Enabled       bool `toml:"enabled"`
	CheckInterval int  `toml:"check_interval"`
}

// DefaultConfig returns a Config with the §6 default values.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			DefaultMode:    "chinese",
			PageSize:       9,
			FullwidthPunct: false,
		},
		Frequency: FrequencyConfig{
			UserWeight:       0.6,
			BaseWeight:       0.3,
			RecencyWeight:    0.1,
			RecencyDecayDays: 30,
			MaxUserFrequency: 100_000,
		},
		Learning: LearningConfig{
			Enabled:        true,
			MinOccurrences: 2,
			MaxInterval:    3000,
		},
		Cloud: CloudConfig{
			Enabled:       true,
			CheckInterval: 86400,
		},
	}
}

// InitConfig loads config from file or creates default if missing.
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return nil, err
	}
	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			return nil, err
		}
		log.Debugf("Created default config file at: ( %s )", configPath)
		return config, nil
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config, using defaults: %v", err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file.
func LoadConfig(configPath string) (*Config, error) {
	var config Config
	if err := utils.LoadTOMLFile(configPath, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig saves into a TOML file.
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes frequency config values and saves to file; nil pointers
// leave the current value untouched. Invalid values (a negative weight, a
// non-positive max user frequency) are ignored silently and the previous
// value is kept.
func (c *Config) Update(configPath string, userWeight, baseWeight *float64, maxUserFrequency *int64) error {
	f := &c.Frequency
	if userWeight != nil && *userWeight >= 0 {
		f.UserWeight = *userWeight
	}
	if baseWeight != nil && *baseWeight >= 0 {
		f.BaseWeight = *baseWeight
	}
	if maxUserFrequency != nil && *maxUserFrequency > 0 {
		f.MaxUserFrequency = *maxUserFrequency
	}
	return SaveConfig(c, configPath)
}
