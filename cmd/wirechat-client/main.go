package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

type rootFlags struct {
	configPath string
	overrides  config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&rootFlags{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wirechat-client",
		Short:         "Terminal client for wirechat rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file path")
	pf.StringVar(&flags.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.overrides.ServerURL, "server", "", "chat server base URL")
	pf.StringVar(&flags.overrides.SessionToken, "token", "", "session token to resume")
	pf.IntVar(&flags.overrides.Reconnect.MaxAttempts, "reconnect", 0, "reconnect attempts after the connection drops (0 ends the session instead)")

	cmd.AddCommand(newDevServerCmd(flags), newConfigCmd(flags))
	return cmd
}

// loadConfig resolves configuration for cmd. Flags win over the file and
// the environment; an explicitly passed --reconnect 0 counts too.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	bootstrap := log.New("info")
	cfg, _, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(flags.overrides)
	if cmd.Flags().Changed("reconnect") {
		cfg.Reconnect.MaxAttempts = flags.overrides.Reconnect.MaxAttempts
	}
	return cfg, nil
}

func runConsole(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel)

	console := app.NewConsole(os.Stdin, os.Stdout, logger)
	session, err := app.New(cfg, console.Callbacks(), logger)
	if err != nil {
		return err
	}
	console.Attach(session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		// The console cannot do anything useful without a session.
		cancel()
		runErr <- err
	}()

	logger.Info().Str("server", cfg.ServerURL).Msg("starting wirechat client")
	if err := console.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("console stopped")
	}
	cancel()

	err = <-runErr
	if errors.Is(err, app.ErrReloadRequired) {
		return fmt.Errorf("%w (restart wirechat-client to reconnect)", err)
	}
	return err
}

func newDevServerCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local development chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger := log.New(cfg.LogLevel)

			srv, err := app.NewDevServer(cfg.DevServer, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.DevServer.Addr).Msg("starting wirechat devserver")
			if err := srv.Run(cmd.Context()); err != nil {
				return fmt.Errorf("devserver exited with error: %w", err)
			}
			logger.Info().Msg("devserver stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.overrides.DevServer.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&flags.overrides.DevServer.DatabasePath, "db", "", "sqlite database path")
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect client configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ResolvePath(flags.configPath))
		},
	})
	return cmd
}
