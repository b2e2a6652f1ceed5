package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kyleking/gh-runwarden/internal/dispatch"
	"github.com/kyleking/gh-runwarden/internal/governance"
	"github.com/kyleking/gh-runwarden/internal/policy"
	"github.com/kyleking/gh-runwarden/internal/scheduler"
)

func (c *cli) watchCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Cancel or re-run workflow runs that match the governance rules.",
		Long: `Poll the repository's queued and in-progress runs on a fixed interval and
apply the configured governance rules. Rules are evaluated in order and the
first match decides the action for a run.

A pass ends once every cancel and rerun request it sent has been answered or
has hit governance.action-timeout (30s by default), and the interval counts
from the end of the pass. A slow request therefore delays the next pass.

Example .runwarden.yaml:

  governance:
    interval: 60s
    rules:
      - message_contains: "[branch-2"
      - actor_not_in: [lhotari, merlimat]
      - rerun_on_failure`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.ValidateGovernance(); err != nil {
				return err
			}
			client, err := c.client()
			if err != nil {
				return err
			}
			matcher, err := policy.NewMatcher(c.cfg.Governance.Rules...)
			if err != nil {
				return err
			}

			dispatcher := dispatch.New(client, c.cfg.Governance.ActionTimeout, c.logger)
			governor := governance.New(client, matcher, dispatcher, c.cfg.GovernanceOptions(), c.logger)
			task := func(ctx context.Context) error {
				_, err := governor.RunPass(ctx)
				return err
			}
			loop := scheduler.New("governance", c.cfg.Governance.Interval, task, c.logger)

			c.logger.Info("watching runs",
				"repo", c.cfg.Repo,
				"interval", loop.Interval(),
				"statuses", c.cfg.Governance.Statuses,
				"rules", len(c.cfg.Governance.Rules),
			)

			if once {
				return loop.RunOnce(cmd.Context())
			}
			err = loop.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single governance pass and exit")
	cmd.Flags().Duration("interval", scheduler.DefaultInterval, "Delay between passes")
	c.bindFlag(cmd, "governance.interval", "interval")
	return cmd
}
