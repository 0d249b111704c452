package config

import (
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/lookupbot/internal/core"
	"gopkg.in/yaml.v3"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

var registerOnce sync.Once

// registerStubs registers the modules referenced by validConfig.
func registerStubs() {
	registerOnce.Do(func() {
		core.RegisterModule(&stubModule{id: "channel.telegram"})
		core.RegisterModule(&stubModule{id: "store.sqlite"})
	})
}

func validConfig() *Config {
	registerStubs()
	bot := DefaultBotConfig()
	bot.AdminID = 6258915779
	return &Config{
		Version: "1",
		Bot:     bot,
		Modules: map[string]yaml.Node{"channel.telegram": {}, "store.sqlite": {}},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, []string{"version"}},
		{"unsupported version", func(c *Config) { c.Version = "99" }, []string{"unsupported"}},
		{"unknown modules", func(c *Config) {
			c.Modules["bad.one"] = yaml.Node{}
			c.Modules["bad.two"] = yaml.Node{}
		}, []string{"bad.one", "bad.two"}},
		{"missing telegram", func(c *Config) { delete(c.Modules, "channel.telegram") }, []string{`"channel.telegram" is required`}},
		{"no admin", func(c *Config) { c.Bot.AdminID = 0 }, []string{"admin_id"}},
		{"no groups", func(c *Config) { c.Bot.RequiredGroups = nil }, []string{"required_groups"}},
		{"bad group", func(c *Config) { c.Bot.RequiredGroups = []string{"anshapi"} }, []string{"@handle"}},
		{"negative delay", func(c *Config) { c.Bot.CloneStartDelay = -1 }, []string{"clone_start_delay"}},
		{"zero concurrency", func(c *Config) { c.Bot.BroadcastConcurrency = 0 }, []string{"broadcast_concurrency"}},
		{"bad sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, []string{"sample_ratio"}},
		{"several at once", func(c *Config) {
			c.Version = ""
			c.Bot.AdminID = -1
		}, []string{"version", "admin_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should mention %q: %v", want, err)
				}
			}
		})
	}
}

func TestResolve_ProvidersFirst(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		"lookup.http":      {},
		"channel.telegram": {},
		"store.sqlite":     {},
		"gateway.http":     {},
	}}
	got := Resolve(cfg)
	want := []string{"store.sqlite", "lookup.http", "channel.telegram", "gateway.http"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}
