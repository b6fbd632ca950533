package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/df-mc/scaffold/server"
	"github.com/df-mc/scaffold/server/cmd/builtin"
	"github.com/df-mc/scaffold/server/console"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	root := &cobra.Command{
		Use:          "scaffold",
		Short:        "Run a plugin host server",
		SilenceUsage: true,
		RunE: func(c *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(c.OutOrStderr(), &slog.HandlerOptions{Level: level}))
			return run(c.Context(), log, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the TOML configuration file")
	root.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(newConfigCommand(&configPath), newVersionCommand())
	return root
}

func newConfigCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Write the default configuration if missing and print the effective configuration",
		RunE: func(c *cobra.Command, _ []string) error {
			uc, err := server.LoadUserConfig(*configPath)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.OutOrStdout(), "%+v\n", uc)
			return err
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(c *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(c.OutOrStdout(), "scaffold (Minecraft %s, %s)\n", protocol.CurrentVersion, runtime.Version())
			return err
		},
	}
}

func run(ctx context.Context, log *slog.Logger, configPath string) error {
	uc, err := server.LoadUserConfig(configPath)
	if err != nil {
		return err
	}
	conf, err := uc.Config(log)
	if err != nil {
		return err
	}

	srv := conf.New()
	srv.CloseOnProgramEnd()
	if err := builtin.Register(srv); err != nil {
		return fmt.Errorf("register built-in commands: %w", err)
	}
	srv.LoadPlugins()
	log.Info("Server started.", "name", srv.Name(), "plugins", len(srv.Plugins()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		console.New(srv, log).Run(ctx)
		// Closing stdin stops the server.
		if err := srv.Close(); err != nil {
			log.Error("Close server.", "error", err)
		}
	}()
	<-srv.Done()
	return nil
}
