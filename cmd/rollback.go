package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/riadafridishibly/compactor/engine"
)

func newRollbackCmd(c *cli) *cobra.Command {
	var (
		operation string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "rollback [dir]",
		Short: "Decompress a folder, reversing its last compression",
		Long: `Decompress the folder with compact.exe /U. By default the most recent
completed compression of the folder is reversed; --operation picks a specific
journal entry. With --operation, [dir] may be omitted; when given it must be
the folder that operation compressed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := engine.RollbackRequest{Verbose: verbose}
			if operation != "" {
				id, err := uuid.Parse(operation)
				if err != nil {
					return errors.WithHint(errors.Wrapf(err, "operation id %q", operation),
						"use the id shown by 'compactor history'")
				}
				req.OperationID = &id
			}
			if req.OperationID == nil || len(args) > 0 {
				dir, err := resolveDir(args)
				if err != nil {
					return err
				}
				req.Root = dir
			}

			p := &progressPrinter{w: cmd.ErrOrStderr()}
			rec, err := c.app.engine.Rollback(cmd.Context(), req, p.update)
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
	cmd.Flags().StringVar(&operation, "operation", "", "journal id of the compression to reverse")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "let the tool report every file")
	return cmd
}
