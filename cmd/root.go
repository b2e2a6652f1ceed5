// Package cmd defines the command-line interface for gh-runwarden.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kyleking/gh-runwarden/internal/config"
	"github.com/kyleking/gh-runwarden/internal/github"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

// NewRootCommand builds the command tree around a fresh viper instance.
func NewRootCommand() *cobra.Command {
	c := &cli{v: config.New(), stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "gh-runwarden",
		Short: "Govern GitHub Actions runs and track failing tests.",
		Long: `gh-runwarden watches a repository's GitHub Actions runs.

It cancels or re-runs workflow runs that match declarative rules, and
aggregates the annotations of failed runs into a ranked report of the
tests that fail most often.`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("repo", "R", "", "Repository as [HOST/]OWNER/REPO (default: current checkout)")
	flags.String("host", "", "GitHub host override")
	flags.String("config", "", "Path to config file (default: .runwarden.yaml)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	if err := c.v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("binding root flags: %v", err))
	}

	root.AddCommand(
		c.watchCommand(),
		c.aggregateCommand(),
		c.reportCommand(),
		c.compareCommand(),
		c.rulesCommand(),
		versionCommand(),
	)
	return root
}

// setup merges file, env and flags into the config and builds the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	if err := config.ReadFile(c.v, c.v.GetString("config")); err != nil {
		return err
	}
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(c.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// bindFlag ties a subcommand flag to a nested config key.
func (c *cli) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := c.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding %s: %v", flag, err))
	}
}

// client builds the provider client for commands that need the API.
func (c *cli) client() (*github.Client, error) {
	if err := c.cfg.RequireRepo(); err != nil {
		return nil, err
	}
	return github.NewClient(c.cfg.ClientOptions(c.logger))
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
