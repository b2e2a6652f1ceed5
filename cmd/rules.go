package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kyleking/gh-runwarden/internal/policy"
)

func (c *cli) rulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective governance rules as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			matcher, err := policy.NewMatcher(c.cfg.Governance.Rules...)
			if err != nil {
				return err
			}
			data, err := policy.MarshalRules(matcher.Rules())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
