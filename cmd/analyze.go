package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/riadafridishibly/compactor/scanner"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Scan a folder and estimate compression savings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}
			p := &progressPrinter{w: cmd.ErrOrStderr()}
			res, err := c.app.engine.Analyze(cmd.Context(), dir, func(sp scanner.Progress) {
				if time.Since(p.last) < 200*time.Millisecond {
					return
				}
				p.last = time.Now()
				p.write(fmt.Sprintf("Scanning  %s files  %s", humanize.Comma(sp.FilesScanned), sizeText(sp.BytesScanned)))
			})
			p.done()
			if err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), res, top)
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "t", 10, "list this many files with the largest estimated savings")
	return cmd
}
