package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) seedPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-plans",
		Short: "Insert or update the default subscription plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cli.openApp(ctx, cli.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Services.Subscriptions.SeedPlans(ctx); err != nil {
				return err
			}
			plans, err := a.Services.Subscriptions.ListPlans(ctx)
			if err != nil {
				return err
			}
			for _, p := range plans {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", p.Code, p.Name)
			}
			return nil
		},
	}
}
