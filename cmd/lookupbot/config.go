package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flemzord/lookupbot/internal/config"
	"github.com/flemzord/lookupbot/internal/core"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(cmd.OutOrStdout(), args[0], cmd.ErrOrStderr())
		},
	})
	return cmd
}

// checkConfig loads, validates and provisions the configuration at path
// without starting anything.
func checkConfig(out io.Writer, path string, logOut io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Modules provision against a scratch data dir so a check never
	// touches the real database.
	scratch, err := os.MkdirTemp("", "lookupbot-check-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
	appCtx := core.NewAppContext(logger, scratch)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}
	defer application.Release()
	ids := application.ModuleIDs()

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(out, "%s Configuration OK (%d modules)\n", green("✓"), len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	fmt.Fprintf(out, "\nAdmin: %d\nRequired groups: %v\n", cfg.Bot.AdminID, cfg.Bot.RequiredGroups)
	return nil
}
