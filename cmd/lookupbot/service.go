package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/fatih/color"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/lookupbot/pkg/app"
)

// program adapts app.RunContext to the OS service manager.
type program struct {
	params app.RunParams
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- app.RunContext(ctx, p.params)
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func serviceConfig(params app.RunParams) *service.Config {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		args = append(args, "--config", params.ConfigPath)
	}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}
	return &service.Config{
		Name:        "lookupbot",
		DisplayName: "Lookup Bot",
		Description: "Telegram phone and Aadhar lookup bot",
		Arguments:   args,
	}
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run>",
		Short:     "Manage lookupbot as an OS service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(slices.Clone(service.ControlAction[:]), "run"),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			prg := &program{params: params}
			svc, err := service.New(prg, serviceConfig(params))
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			action := args[0]
			if action == "run" {
				return svc.Run()
			}
			if !slices.Contains(service.ControlAction[:], action) {
				return fmt.Errorf("unknown action %q (valid: %v, run)", action, service.ControlAction)
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s service %s\n", color.GreenString("✓"), action)
			return nil
		},
	}
	addRunFlags(cmd)
	return cmd
}
