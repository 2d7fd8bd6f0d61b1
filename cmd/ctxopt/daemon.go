package main

import (
	"context"
	"fmt"

	"github.com/flemzord/ctxopt/internal/mcpserver"
	"github.com/flemzord/ctxopt/internal/svc"
	"github.com/flemzord/ctxopt/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

func (g *globalFlags) runParams() app.RunParams {
	return app.RunParams{
		ConfigPath:  g.configPath,
		ProjectRoot: g.projectRoot,
		LogLevel:    g.logLevel,
		Version:     version,
	}
}

func scheduleCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the optimizer on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := g.runParams()
			params.LogOutput = cmd.ErrOrStderr()
			return app.Run(cmd.Context(), params)
		},
	}
}

func serviceCmd(g *globalFlags) *cobra.Command {
	var userService bool

	newService := func() (service.Service, error) {
		params := g.runParams()
		return svc.New(svc.Options{
			ConfigPath:  g.configPath,
			ProjectRoot: g.projectRoot,
			UserService: userService,
		}, func(ctx context.Context) error {
			return app.Run(ctx, params)
		})
	}

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the scheduler as an OS service",
	}
	cmd.PersistentFlags().BoolVar(&userService, "user", false, "Use a per-user service where supported")

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the %s service", action, svc.Name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				if err := svc.Control(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service %s: %s done\n", svc.Name, action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService()
			if err != nil {
				return err
			}
			st, err := svc.StatusString(s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %s: %s\n", svc.Name, st)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager (used by the installed unit)",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := newService()
			if err != nil {
				return err
			}
			return s.Run()
		},
	})

	return cmd
}

func mcpCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the optimizer as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			return mcpserver.Serve(mcpserver.Params{
				Optimizer: s.opt,
				Logger:    s.logger,
				Version:   version,
			})
		},
	}
}
