package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riadafridishibly/compactor/tui"
)

func newUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ui [dir]",
		Short: "Open the terminal UI on a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUI(cmd, args)
		},
	}
}

func (c *cli) runUI(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	if c.cfg.Log.File != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Logfile is being written in:", c.cfg.Log.File)
	}
	app := tui.NewApp(c.app.engine, dir, tui.DefaultConfig(), c.logger)
	return app.Run()
}
