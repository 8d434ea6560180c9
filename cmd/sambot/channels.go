package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the channels visible to the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d := buildDeps(cfg, logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()
			channels, err := d.slack.ListChannels(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMEMBER")
			for _, ch := range channels {
				fmt.Fprintf(tw, "%s\t%s\t%t\n", ch.ID, ch.Name, ch.IsMember)
			}
			return tw.Flush()
		},
	}
}
