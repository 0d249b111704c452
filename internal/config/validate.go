package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/lookupbot/internal/core"
)

// RequiredModules must appear in every configuration.
var RequiredModules = []string{"channel.telegram"}

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}
	for _, id := range RequiredModules {
		if _, ok := cfg.Modules[id]; !ok {
			errs = append(errs, fmt.Errorf("config: module %q is required", id))
		}
	}

	errs = append(errs, validateBot(cfg.Bot)...)
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

func validateBot(b BotConfig) []error {
	var errs []error

	if b.AdminID <= 0 {
		errs = append(errs, errors.New("config: bot.admin_id must be a positive user ID"))
	}
	if len(b.RequiredGroups) == 0 {
		errs = append(errs, errors.New("config: bot.required_groups must list at least one group"))
	}
	for i, g := range b.RequiredGroups {
		if !strings.HasPrefix(g, "@") || len(g) < 2 {
			errs = append(errs, fmt.Errorf("config: bot.required_groups[%d]: %q must be an @handle", i, g))
		}
	}
	for name, d := range map[string]int64{
		"progress_interval":       int64(b.ProgressInterval),
		"clone_progress_interval": int64(b.CloneProgressInterval),
		"clone_start_delay":       int64(b.CloneStartDelay),
		"recovery_delay":          int64(b.RecoveryDelay),
		"recovery_jitter":         int64(b.RecoveryJitter),
		"shutdown_timeout":        int64(b.ShutdownTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("config: bot.%s must not be negative", name))
		}
	}
	if b.LookupsPerMin < 0 {
		errs = append(errs, errors.New("config: bot.lookups_per_min must not be negative"))
	}
	if b.BroadcastConcurrency < 1 {
		errs = append(errs, errors.New("config: bot.broadcast_concurrency must be at least 1"))
	}
	return errs
}
