// Package cmd is the compactor command tree.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/config"
	"github.com/riadafridishibly/compactor/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	configFile string
	logLevel   string
	logConsole bool

	cfg    *config.Config
	logger *zap.Logger
	app    *app

	// open builds the engine stack; tests replace it.
	open func(cfg *config.Config, logger *zap.Logger) (*app, error)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "compactor [dir]",
		Short: "Estimate and apply transparent NTFS compression to a folder",
		Long: `compactor scans a folder, estimates how much transparent NTFS compression
would save, and drives compact.exe to compress or decompress it. Every run is
journaled so it can be audited, resumed or rolled back.

Without a subcommand the terminal UI opens on the given folder.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUI(cmd, args)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default: search $HOME/.config/compactor and .)")
	pf.StringVar(&c.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.BoolVar(&c.logConsole, "log-console", false, "also write logs to stderr")

	root.AddCommand(
		newAnalyzeCmd(c),
		newCompressCmd(c),
		newRollbackCmd(c),
		newStatusCmd(c),
		newHistoryCmd(c),
		newRecoverCmd(c),
		newUICmd(c),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	l, err := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		Encoding: cfg.Log.Encoding,
		Console:  c.logConsole,
	})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = l
	l.Debug("configuration loaded", zap.String("file", cfg.ConfigFile), zap.String("journal", cfg.Journal.Path))

	a, err := c.open(cfg, l)
	if err != nil {
		return errors.Wrap(err, "start engine")
	}
	c.app = a
	return nil
}

func (c *cli) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.logger != nil {
		c.logger.Sync()
	}
	return err
}

// Execute runs the command tree; SIGINT and SIGTERM cancel the running
// operation, which still gets its terminal journal entry.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{open: openApp}
	err := newRootCmd(c).ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
