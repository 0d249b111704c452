package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	groupPattern = regexp.MustCompile(`^@[A-Za-z0-9_]{4,}$`)
)

// initAnswers are the values collected by `lookupbot init`.
type initAnswers struct {
	Token   string
	AdminID string
	Groups  string
	Gateway bool
	Bind    string
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := initAnswers{Groups: "@anshapi @revangeosint", Bind: "127.0.0.1:8080"}
			if err := askInit(&answers); err != nil {
				return err
			}
			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, raw, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", color.GreenString("✓"), path)
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s to verify it.\n", color.CyanString("lookupbot config check "+path))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "lookupbot.yaml", "Path of the file to write")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func askInit(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot token").
				Description("From @BotFather. Leave empty to read $LOOKUPBOT_TOKEN at startup").
				EchoMode(huh.EchoModePassword).
				Validate(validateToken).
				Value(&a.Token),
			huh.NewInput().
				Title("Admin user ID").
				Description("Allowed to /broadcast and /stats").
				Validate(validateAdminID).
				Value(&a.AdminID),
			huh.NewInput().
				Title("Required groups").
				Description("Space-separated @handles users must join").
				Validate(validateGroups).
				Value(&a.Groups),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the HTTP status gateway?").
				Value(&a.Gateway),
		),
	)
	return form.Run()
}

func validateToken(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if !tokenPattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("expected <bot_id>:<hash>")
	}
	return nil
}

func validateAdminID(s string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return errors.New("must be a positive numeric user ID")
	}
	return nil
}

func validateGroups(s string) error {
	groups := strings.Fields(s)
	if len(groups) == 0 {
		return errors.New("at least one group is required")
	}
	for _, g := range groups {
		if !groupPattern.MatchString(g) {
			return fmt.Errorf("%q is not an @handle", g)
		}
	}
	return nil
}

// renderConfig builds the YAML written by init. The token is referenced
// through ${LOOKUPBOT_TOKEN} when it is empty so the file can be committed.
func renderConfig(a initAnswers) ([]byte, error) {
	adminID, err := strconv.ParseInt(strings.TrimSpace(a.AdminID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("admin id: %w", err)
	}
	token := strings.TrimSpace(a.Token)
	if token == "" {
		token = "${LOOKUPBOT_TOKEN}"
	}

	modules := map[string]any{
		"channel.telegram": map[string]any{"token": token},
		"lookup.http":      map[string]any{},
		"store.sqlite":     map[string]any{},
		"scheduler.cron":   map[string]any{},
	}
	if a.Gateway {
		modules["gateway.http"] = map[string]any{"bind": a.Bind}
	}

	doc := map[string]any{
		"version": "1",
		"bot": map[string]any{
			"admin_id":        adminID,
			"required_groups": strings.Fields(a.Groups),
		},
		"modules": modules,
	}
	return yaml.Marshal(doc)
}
