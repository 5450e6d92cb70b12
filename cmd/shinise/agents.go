package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
)

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the analysis agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, e := range agents.Catalog() {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\n", e.ID, e.Icon, e.Name, e.Description)
			}
			return tw.Flush()
		},
	}
}
