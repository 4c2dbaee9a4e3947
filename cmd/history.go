package cmd

import (
	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled operations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := c.app.engine.History(cmd.Context(), n)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of operations to show")
	return cmd
}
