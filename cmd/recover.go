package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecoverCmd(c *cli) *cobra.Command {
	var markFailed bool
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "List operations left in progress by an interrupted run",
		Long: `List journal entries still marked in progress, which happens when the
process died while compact.exe was running. With --mark-failed they are closed
as failed so they no longer count as running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := c.app.engine.Recover(cmd.Context(), markFailed)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(w, "No interrupted operations.")
				return nil
			}
			printHistory(w, records)
			if !markFailed {
				fmt.Fprintln(w, "\nRe-run compress on these folders, or pass --mark-failed to close them.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markFailed, "mark-failed", false, "close interrupted operations as failed")
	return cmd
}
