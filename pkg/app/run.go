// Package app provides the shared entry point of the lookupbot binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/lookupbot/internal/config"
	"github.com/flemzord/lookupbot/internal/core"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives the text logs. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, params)
}

// RunContext loads configuration, starts all modules and bot instances,
// and blocks until ctx is done.
func RunContext(ctx context.Context, params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	redactor := security.NewRedactor()

	// Wrap the text handler in a redacting handler so bot tokens never reach the logs.
	logOut := params.LogOutput
	if logOut == nil {
		logOut = os.Stderr
	}
	innerHandler := slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(security.NewRedactingHandler(innerHandler, redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	auditFile, err := os.OpenFile(filepath.Join(dataDir, "audit.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditFile.Close()
	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditFile,
		Redactor: redactor,
	})

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	rateLimiter := security.NewRateLimiter(cfg.Bot.LookupsPerMin, time.Minute)
	registry := instance.NewRegistry()

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Shared services, discoverable by every module.
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	appCtx.RegisterService("security.ratelimiter", rateLimiter)
	appCtx.RegisterService("metrics", metrics.New())
	appCtx.RegisterService("bot.config", cfg.Bot)
	appCtx.RegisterService("instance.registry", registry)

	application := core.NewApp(appCtx, core.WithShutdownTimeout(cfg.Bot.ShutdownTimeout))
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	// Assemble the bot between LoadModules and Start: every module is
	// provisioned, none is running yet.
	if err := wireBot(application, appCtx, cfg.Bot, registry); err != nil {
		application.Release()
		return err
	}

	if err := application.Start(); err != nil {
		return err
	}
	logger.Info("lookupbot started", "version", params.Version, "commit", params.Commit)

	<-ctx.Done()
	logger.Info("shutdown requested", "cause", context.Cause(ctx))
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/lookupbot/lookupbot.yaml → ~/.config/lookupbot/lookupbot.yaml → ./lookupbot.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "lookupbot", "lookupbot.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "lookupbot", "lookupbot.yaml"))
	}

	candidates = append(candidates, "lookupbot.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/lookupbot if set, otherwise ~/.local/share/lookupbot.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "lookupbot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "lookupbot")
}
