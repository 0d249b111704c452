package config

import (
	"slices"

	"github.com/flemzord/lookupbot/internal/core"
)

// Resolve returns the configured module IDs in load order: storage, then
// the lookup gateway, then the rest sorted by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, core.CompareLoadOrder)
	return ids
}
