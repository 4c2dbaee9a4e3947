package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status [dir]",
		Short: "Show the volume and the current compression state of a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Folder:             %s\n", dir)
			if vol, err := c.app.prober.Probe(dir); err != nil {
				c.logger.Warn("volume probe failed", zap.String("root", dir), zap.Error(err))
			} else {
				printVolume(w, vol)
			}
			if kind, ok := c.app.engine.Running(dir); ok {
				fmt.Fprintf(w, "Running:            %s\n", kind)
			}
			if c.app.engine.Paused(dir) {
				fmt.Fprintln(w, "Paused:             yes")
			}

			sum, err := c.app.engine.Status(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printStatus(w, sum)
			return nil
		},
	}
}
