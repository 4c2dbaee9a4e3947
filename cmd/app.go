package cmd

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/config"
	"github.com/riadafridishibly/compactor/diskusage"
	"github.com/riadafridishibly/compactor/engine"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

// app owns the long-lived pieces behind every command.
type app struct {
	journal *journal.Journal
	engine  *engine.Engine
	prober  *diskusage.Prober
}

func openApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}

	m := diskusage.NewMeasurer(logger)
	prober := &diskusage.Prober{Logger: logger, Measurer: m}
	sc, err := scanner.NewScanner(cfg.ScanOptions(),
		scanner.WithLogger(logger),
		scanner.WithMeasurer(m),
		scanner.WithProber(prober),
	)
	if err != nil {
		j.Close()
		return nil, err
	}

	rc, err := cfg.RunnerConfig()
	if err != nil {
		j.Close()
		return nil, err
	}
	rn := runner.New(rc, logger)

	eng := engine.New(sc, rn, j,
		engine.WithLogger(logger),
		engine.WithMeasure(m.DirectorySizeOnDisk),
		engine.WithRunnerOptions(cfg.RunnerOptions()),
	)
	return &app{journal: j, engine: eng, prober: prober}, nil
}

func (a *app) Close() error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Close()
}

// resolveDir turns the argument into an existing absolute directory,
// defaulting to the working directory.
func resolveDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", dir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(err, "path %s", abs)
	}
	if !info.IsDir() {
		return "", errors.Newf("%s is not a directory", abs)
	}
	return abs, nil
}
