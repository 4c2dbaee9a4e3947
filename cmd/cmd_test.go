package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/config"
	"github.com/riadafridishibly/compactor/diskusage"
	"github.com/riadafridishibly/compactor/engine"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

type stubRunner struct {
	exitCode int
	requests []runner.Request
}

func (s *stubRunner) Run(_ context.Context, req runner.Request, onProgress func(runner.CompressionProgress)) (*runner.Result, error) {
	s.requests = append(s.requests, req)
	if onProgress != nil {
		onProgress(runner.CompressionProgress{Status: "Compressing", Percent: 100, TotalBytes: req.TotalBytes})
	}
	res := &runner.Result{Started: true, ExitCode: s.exitCode}
	if s.exitCode != 0 {
		res.ErrorLines = []string{"Access is denied."}
	}
	return res, nil
}

func (s *stubRunner) QueryStatus(_ context.Context, dir string) (*runner.StatusSummary, *runner.Result, error) {
	return &runner.StatusSummary{Directory: dir, TotalFiles: 3, Directories: 1, Compressed: 2, Uncompressed: 1, Ratio: 1.8, Parsed: true},
		&runner.Result{Started: true}, nil
}

type harness struct {
	dir    string
	runner *stubRunner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	t.Setenv("LOCALAPPDATA", filepath.Join(home, "AppData", "Local"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData", "Roaming"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(strings.Repeat("compress me ", 4096)), 0o644))
	return &harness{dir: dir, runner: &stubRunner{}}
}

func (h *harness) open(cfg *config.Config, logger *zap.Logger) (*app, error) {
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	m := diskusage.NewMeasurer(logger)
	prober := &diskusage.Prober{Logger: logger, Measurer: m}
	sc, err := scanner.NewScanner(cfg.ScanOptions(), scanner.WithLogger(logger), scanner.WithMeasurer(m), scanner.WithProber(prober))
	if err != nil {
		j.Close()
		return nil, err
	}
	eng := engine.New(sc, h.runner, j, engine.WithLogger(logger), engine.WithMeasure(m.DirectorySizeOnDisk))
	return &app{journal: j, engine: eng, prober: prober}, nil
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{open: h.open}
	root := newRootCmd(c)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	require.NoError(t, c.close())
	return out.String(), err
}

func TestHistoryEmpty(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No operations recorded.")
}

func TestCompressJournalsAndShowsInHistory(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "compress", "--algorithm", "lzx", "--force", h.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:     Completed")
	assert.Contains(t, out, "Algorithm:  lzx")

	require.Len(t, h.runner.requests, 1)
	req := h.runner.requests[0]
	assert.Equal(t, runner.OpCompress, req.Operation)
	assert.Equal(t, runner.AlgorithmLZX, req.Options.Algorithm)
	assert.True(t, req.Options.Force)

	out, err = h.run(t, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "compress")
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, h.dir)
}

func TestCompressRejectsUnknownAlgorithm(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "compress", "--algorithm", "zip", h.dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown algorithm")
	assert.Empty(t, h.runner.requests)
}

func TestCompressToolFailureExitsNonZero(t *testing.T) {
	h := newHarness(t)
	h.runner.exitCode = 5
	out, err := h.run(t, "compress", h.dir)
	require.Error(t, err)
	assert.Contains(t, out, "Status:     Failed")
	assert.Contains(t, out, "Access is denied.")
}

func TestRollbackReversesLastCompression(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "compress", "-a", "xpress16k", h.dir)
	require.NoError(t, err)

	out, err := h.run(t, "rollback", h.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "(rollback)")
	assert.Contains(t, out, "Status:     RolledBack")
	assert.Contains(t, out, "Reverses:")

	require.Len(t, h.runner.requests, 2)
	assert.Equal(t, runner.OpUncompress, h.runner.requests[1].Operation)
	assert.Equal(t, runner.AlgorithmXpress16K, h.runner.requests[1].Options.Algorithm)
}

func TestRollbackBadOperationID(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "rollback", "--operation", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "compactor history")
	assert.Empty(t, h.runner.requests)
}

func TestRollbackUnknownOperation(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "rollback", "--operation", "6f1c1b8e-4d7a-4f59-9d2e-0c7c2b1f0a11")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNothingToRollback), "%v", err)
}

func TestRecoverNothingInterrupted(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "recover", "--mark-failed")
	require.NoError(t, err)
	assert.Contains(t, out, "No interrupted operations.")
}

func TestStatusPrintsToolSummary(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "status", h.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Folder:             "+h.dir)
	assert.Contains(t, out, "Compressed:         2")
	assert.Contains(t, out, "Ratio:              1.8 to 1")
}

func TestAnalyzeListsFiles(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "analyze", "--top", "3", h.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Folder:             "+h.dir)
	assert.Contains(t, out, "Files:              1")
}

func TestResolveDirRejectsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := resolveDir([]string{file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	got, err := resolveDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestRollbackOperationForAnotherFolder(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "compress", h.dir)
	require.NoError(t, err)
	id := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(out, "Operation:  "), " ", 2)[0])

	_, err = h.run(t, "rollback", "--operation", id, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNothingToRollback), "%v", err)
	assert.Len(t, h.runner.requests, 1)
}
