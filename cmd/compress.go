package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/riadafridishibly/compactor/engine"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
)

func newCompressCmd(c *cli) *cobra.Command {
	var (
		algorithm string
		force     bool
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "compress [dir]",
		Short: "Compress a folder with compact.exe",
		Long: `Compress every file under the folder. The run is journaled before the tool
starts, so an interrupted run shows up in history and can be recovered.

Algorithms: none (LZNT1), xpress4k, xpress8k, xpress16k, lzx.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := runner.ParseAlgorithm(algorithm)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(args)
			if err != nil {
				return err
			}
			algo, _ := runner.ParseAlgorithm(algorithm)
			p := &progressPrinter{w: cmd.ErrOrStderr()}
			rec, err := c.app.engine.Compress(cmd.Context(), engine.CompressRequest{
				Root:      dir,
				Algorithm: algo,
				Force:     force,
				Verbose:   verbose,
			}, p.update)
			p.done()
			if rec != nil {
				printRecord(cmd.OutOrStdout(), rec)
			}
			if err != nil {
				return err
			}
			return recordError(rec)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&algorithm, "algorithm", "a", runner.AlgorithmXpress4K.String(), "compression algorithm")
	f.BoolVarP(&force, "force", "f", false, "recompress files that are already compressed")
	f.BoolVarP(&verbose, "verbose", "v", false, "let the tool report every file")
	return cmd
}

// recordError turns a run that ended without success into a non-zero exit.
func recordError(rec *journal.Record) error {
	switch rec.Status {
	case journal.StatusCompleted, journal.StatusRolledBack:
		return nil
	}
	return errors.Newf("%s ended as %s", rec.Path, rec.Status)
}
