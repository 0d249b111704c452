// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for lookupbot.
package config

import (
	"time"

	"github.com/flemzord/lookupbot/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Bot holds the behavior shared by the primary bot and its clones.
	Bot BotConfig `yaml:"bot"`

	// Telemetry configures trace export.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// BotConfig controls lookups, gating and instance supervision. Every field
// can be overridden by a LOOKUPBOT_* environment variable.
type BotConfig struct {
	// AdminID is the user allowed to broadcast and read stats.
	AdminID int64 `yaml:"admin_id" split_words:"true"`

	// RequiredGroups are the group handles a user must belong to.
	RequiredGroups []string `yaml:"required_groups" split_words:"true"`

	// DataSource is credited in report footers.
	DataSource string `yaml:"data_source" split_words:"true"`

	// ProgressInterval separates the progress edits of a lookup.
	ProgressInterval time.Duration `yaml:"progress_interval" split_words:"true"`

	// CloneProgressInterval is used by clone instances.
	CloneProgressInterval time.Duration `yaml:"clone_progress_interval" split_words:"true"`

	// CloneStartDelay is waited before a newly registered clone starts polling.
	CloneStartDelay time.Duration `yaml:"clone_start_delay" split_words:"true"`

	// RecoveryDelay and RecoveryJitter space out persisted clones at boot.
	RecoveryDelay  time.Duration `yaml:"recovery_delay" split_words:"true"`
	RecoveryJitter time.Duration `yaml:"recovery_jitter" split_words:"true"`

	// LookupsPerMin caps lookups per user. Zero disables the limit.
	LookupsPerMin int `yaml:"lookups_per_min" split_words:"true"`

	// BroadcastConcurrency bounds parallel deliveries of one broadcast.
	BroadcastConcurrency int `yaml:"broadcast_concurrency" split_words:"true"`

	// NotifyAdmin forwards the activity log to the admin chat.
	NotifyAdmin bool `yaml:"notify_admin" split_words:"true"`

	// ShutdownTimeout bounds the stop sequence of every module.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DefaultBotConfig returns the settings used for fields absent from the file.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		RequiredGroups:        []string{"@anshapi", "@revangeosint"},
		DataSource:            "@revangeosint",
		ProgressInterval:      500 * time.Millisecond,
		CloneProgressInterval: 300 * time.Millisecond,
		CloneStartDelay:       2 * time.Second,
		RecoveryDelay:         5 * time.Second,
		RecoveryJitter:        5 * time.Second,
		LookupsPerMin:         20,
		BroadcastConcurrency:  8,
		NotifyAdmin:           true,
		ShutdownTimeout:       30 * time.Second,
	}
}
