// Package engine orchestrates analysis, compression and rollback of a
// directory, keeping the journal consistent with what the tool actually did.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/diskusage"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

var (
	ErrCancelled         = errors.New("operation cancelled")
	ErrNothingToRollback = errors.New("nothing to roll back")
	ErrNothingToResume   = errors.New("no paused operation for this directory")
)

const interruptedMessage = "interrupted: the process exited before the operation finished"

// measureTimeout bounds the walks that measure before and after bytes. Both
// run detached from the caller so a cancelled run is still measured.
const measureTimeout = 2 * time.Minute

type Scanner interface {
	Scan(ctx context.Context, root string, onProgress func(scanner.Progress)) (*scanner.FolderAnalysisResult, error)
}

type Runner interface {
	Run(ctx context.Context, req runner.Request, onProgress func(runner.CompressionProgress)) (*runner.Result, error)
	QueryStatus(ctx context.Context, dir string) (*runner.StatusSummary, *runner.Result, error)
}

type Journal interface {
	Add(ctx context.Context, r *journal.Record) error
	Update(ctx context.Context, r *journal.Record) error
	Get(ctx context.Context, id uuid.UUID) (*journal.Record, error)
	Recent(ctx context.Context, n int) ([]*journal.Record, error)
	Stuck(ctx context.Context) ([]*journal.Record, error)
	LastCompleted(ctx context.Context, path string) (*journal.Record, error)
}

// SizeFunc measures the on-disk bytes of a directory tree.
type SizeFunc func(ctx context.Context, root string) (int64, error)

// CompressRequest selects the directory and compact.exe switches.
type CompressRequest struct {
	Root      string
	Algorithm runner.Algorithm
	Force     bool
	// Verbose asks the tool for per-file output, which drives the current-file display.
	Verbose bool
}

type RollbackRequest struct {
	Root string
	// OperationID picks the compression to reverse. When nil the latest
	// completed compression of Root is used, if there is one.
	OperationID *uuid.UUID
	Verbose     bool
}

// run is the context of one in-flight operation on a directory.
type run struct {
	kind     string
	cancel   context.CancelFunc
	recordID uuid.UUID
	paused   bool
	request  *CompressRequest
}

type Engine struct {
	scanner Scanner
	runner  Runner
	journal Journal
	measure SizeFunc
	logger  *zap.Logger
	base    runner.Options
	now     func() time.Time

	mu       sync.Mutex
	runs     map[string]*run
	analyses map[string]*scanner.FolderAnalysisResult
	paused   map[string]CompressRequest
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMeasure replaces the after-bytes directory walk.
func WithMeasure(f SizeFunc) Option { return func(e *Engine) { e.measure = f } }

// WithRunnerOptions sets the switches every run starts from; per-request
// fields override Force, Quiet and Algorithm.
func WithRunnerOptions(o runner.Options) Option { return func(e *Engine) { e.base = o } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(sc Scanner, rn Runner, j Journal, opts ...Option) *Engine {
	e := &Engine{
		scanner:  sc,
		runner:   rn,
		journal:  j,
		base:     runner.DefaultOptions(),
		now:      time.Now,
		runs:     make(map[string]*run),
		analyses: make(map[string]*scanner.FolderAnalysisResult),
		paused:   make(map[string]CompressRequest),
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.measure == nil {
		e.measure = diskusage.NewMeasurer(e.logger).DirectorySizeOnDisk
	}
	return e
}

func normalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", root)
	}
	return filepath.Clean(abs), nil
}

// begin registers a new run on root. A run already active on root is
// cancelled and discarded.
func (e *Engine) begin(ctx context.Context, root, kind string) (context.Context, *run, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{kind: kind, cancel: cancel}

	e.mu.Lock()
	if prev, ok := e.runs[root]; ok {
		e.logger.Info("superseding running operation",
			zap.String("root", root), zap.String("previous", prev.kind), zap.String("next", kind))
		prev.cancel()
	}
	e.runs[root] = r
	e.mu.Unlock()

	return runCtx, r, func() {
		cancel()
		e.mu.Lock()
		if e.runs[root] == r {
			delete(e.runs, root)
		}
		e.mu.Unlock()
	}
}

// Running reports the kind of operation active on root, if any.
func (e *Engine) Running(root string) (string, bool) {
	root, err := normalize(root)
	if err != nil {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[root]
	if !ok {
		return "", false
	}
	return r.kind, true
}

// Analyze scans root and keeps the result as the before-bytes source for a
// following Compress.
func (e *Engine) Analyze(ctx context.Context, root string, onProgress func(scanner.Progress)) (*scanner.FolderAnalysisResult, error) {
	root, err := normalize(root)
	if err != nil {
		return nil, err
	}
	runCtx, _, done := e.begin(ctx, root, "analyze")
	defer done()

	res, err := e.scanner.Scan(runCtx, root, onProgress)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, errors.Mark(errors.Wrapf(err, "analyze %s", root), ErrCancelled)
		}
		return nil, errors.Wrapf(err, "analyze %s", root)
	}

	e.mu.Lock()
	e.analyses[root] = res
	e.mu.Unlock()
	return res, nil
}

// LastAnalysis returns the cached analysis of root, nil if there is none.
func (e *Engine) LastAnalysis(root string) *scanner.FolderAnalysisResult {
	root, err := normalize(root)
	if err != nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyses[root]
}

// Compress runs the tool over the directory. The returned record is always
// terminal. Tool failures are reported on the record; cancellation and launch
// failures are also returned as errors.
func (e *Engine) Compress(ctx context.Context, req CompressRequest, onProgress func(runner.CompressionProgress)) (*journal.Record, error) {
	root, err := normalize(req.Root)
	if err != nil {
		return nil, err
	}
	req.Root = root

	runCtx, r, done := e.begin(ctx, root, "compress")
	defer done()

	e.mu.Lock()
	r.request = &req
	delete(e.paused, root)
	e.mu.Unlock()

	before, total, files := e.beforeBytes(ctx, root)
	rec := &journal.Record{
		Path:        root,
		Mode:        req.Algorithm.Mode(),
		Algorithm:   req.Algorithm,
		BeforeBytes: before,
	}
	opts := e.base
	opts.Force = opts.Force || req.Force
	opts.Quiet = opts.Quiet && !req.Verbose
	opts.Algorithm = req.Algorithm

	return e.execute(ctx, runCtx, r, rec, runner.Request{
		Operation:  runner.OpCompress,
		Directory:  root,
		Options:    opts,
		TotalBytes: total,
		TotalFiles: files,
		Throughput: e.AssumedThroughput(ctx, req.Algorithm),
	}, onProgress, journal.StatusCompleted)
}

// Rollback decompresses the directory, reusing the algorithm of the
// operation it reverses.
func (e *Engine) Rollback(ctx context.Context, req RollbackRequest, onProgress func(runner.CompressionProgress)) (*journal.Record, error) {
	var original *journal.Record
	if req.OperationID != nil {
		o, err := e.journal.Get(ctx, *req.OperationID)
		if err != nil {
			if errors.Is(err, journal.ErrNotFound) {
				return nil, errors.Mark(err, ErrNothingToRollback)
			}
			return nil, err
		}
		if o.IsRollback || o.Status != journal.StatusCompleted {
			return nil, errors.Wrapf(ErrNothingToRollback,
				"operation %s is a %s %s, not a completed compression", o.ID, o.Status, kindOf(o))
		}
		original = o
		if req.Root == "" {
			req.Root = o.Path
		} else if root, err := normalize(req.Root); err != nil {
			return nil, err
		} else if root != o.Path {
			return nil, errors.Wrapf(ErrNothingToRollback,
				"operation %s compressed %s, not %s", o.ID, o.Path, root)
		}
	}

	root, err := normalize(req.Root)
	if err != nil {
		return nil, err
	}

	if original == nil {
		o, err := e.journal.LastCompleted(ctx, root)
		switch {
		case err == nil:
			original = o
		case errors.Is(err, journal.ErrNotFound):
			e.logger.Info("no journaled compression, rolling back with the default format", zap.String("root", root))
		default:
			return nil, err
		}
	}

	runCtx, r, done := e.begin(ctx, root, "rollback")
	defer done()

	before, total, files := e.beforeBytes(ctx, root)
	rec := &journal.Record{
		Path:        root,
		Mode:        runner.ModeSafe,
		Algorithm:   runner.AlgorithmNone,
		BeforeBytes: before,
		IsRollback:  true,
	}
	if original != nil {
		id := original.ID
		rec.OriginalOperationID = &id
		rec.Mode = original.Mode
		rec.Algorithm = original.Algorithm
	}
	opts := e.base
	opts.Quiet = opts.Quiet && !req.Verbose
	opts.Algorithm = rec.Algorithm

	return e.execute(ctx, runCtx, r, rec, runner.Request{
		Operation:  runner.OpUncompress,
		Directory:  root,
		Options:    opts,
		TotalBytes: total,
		TotalFiles: files,
		Throughput: e.AssumedThroughput(ctx, rec.Algorithm),
	}, onProgress, journal.StatusRolledBack)
}

func kindOf(r *journal.Record) string {
	if r.IsRollback {
		return "rollback"
	}
	return "compression"
}

// beforeBytes walks the tree the same way finish does, so the journaled
// delta compares the same set of files. The cached analysis only supplies the
// heartbeat totals.
func (e *Engine) beforeBytes(ctx context.Context, root string) (before, total, files int64) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), measureTimeout)
	before, err := e.measure(mctx, root)
	cancel()
	if err != nil {
		e.logger.Warn("cannot measure directory before run", zap.String("root", root), zap.Error(err))
		before = 0
	}
	total = before

	e.mu.Lock()
	a := e.analyses[root]
	e.mu.Unlock()
	if a != nil {
		total, files = a.TotalSizeOnDisk, a.FileCount
	}
	return before, total, files
}

// execute journals rec, drives the tool and writes exactly one terminal
// update, whatever happens in between.
func (e *Engine) execute(ctx, runCtx context.Context, r *run, rec *journal.Record, req runner.Request,
	onProgress func(runner.CompressionProgress), success journal.Status) (*journal.Record, error) {
	logger := e.logger.With(zap.String("root", rec.Path), zap.Bool("rollback", rec.IsRollback))

	rec.StartedAt = e.now()
	rec.Status = journal.StatusInProgress
	// a cancelled caller still gets its record; runCtx carries the cancellation
	if err := e.journal.Add(context.WithoutCancel(ctx), rec); err != nil {
		return nil, errors.Wrap(err, "journal operation")
	}
	e.mu.Lock()
	r.recordID = rec.ID
	e.mu.Unlock()
	logger.Info("operation started", zap.Stringer("id", rec.ID), zap.Stringer("algorithm", rec.Algorithm))

	defer func() {
		if p := recover(); p != nil {
			logger.Error("operation panicked", zap.Any("panic", p))
			e.finish(ctx, rec, journal.StatusFailed, fmt.Sprintf("internal fault: %v", p))
			panic(p)
		}
	}()

	result, runErr := e.runner.Run(runCtx, req, onProgress)

	e.mu.Lock()
	paused := r.paused
	e.mu.Unlock()

	status, msg := classify(result, runErr, success, paused)
	if ferr := e.finish(ctx, rec, status, msg); ferr != nil {
		return rec, errors.CombineErrors(runErr, ferr)
	}

	e.mu.Lock()
	delete(e.analyses, rec.Path)
	if paused && !rec.IsRollback && r.request != nil {
		e.paused[rec.Path] = *r.request
	}
	e.mu.Unlock()

	logger.Info("operation finished",
		zap.Stringer("id", rec.ID),
		zap.Stringer("status", rec.Status),
		zap.Int64("before", rec.BeforeBytes),
		zap.Int64("after", rec.AfterBytes),
		zap.Duration("elapsed", rec.Elapsed()))

	switch {
	case runErr != nil:
		return rec, runErr
	case status == journal.StatusCancelled:
		return rec, errors.Wrapf(ErrCancelled, "%s %s", kindOf(rec), rec.Path)
	}
	return rec, nil
}

func classify(res *runner.Result, runErr error, success journal.Status, paused bool) (journal.Status, string) {
	switch {
	case res != nil && res.Cancelled:
		if paused {
			return journal.StatusCancelled, "paused"
		}
		return journal.StatusCancelled, "cancelled"
	case runErr != nil:
		return journal.StatusFailed, runErr.Error()
	case res != nil && res.ExitCode == 0:
		return success, ""
	}
	code := -1
	var lines []string
	if res != nil {
		code = res.ExitCode
		lines = res.ErrorLines
	}
	msg := fmt.Sprintf("compression tool exited with code %d", code)
	if len(lines) > 0 {
		msg += ": " + strings.Join(lines, "; ")
	}
	return journal.StatusFailed, msg
}

// finish measures after-bytes and writes the terminal record. It runs
// detached from cancellation so a cancelled run is still journaled.
func (e *Engine) finish(ctx context.Context, rec *journal.Record, status journal.Status, msg string) error {
	detached := context.WithoutCancel(ctx)

	mctx, cancel := context.WithTimeout(detached, measureTimeout)
	after, err := e.measure(mctx, rec.Path)
	cancel()
	if err != nil {
		e.logger.Warn("cannot measure directory after run, keeping before size",
			zap.String("root", rec.Path), zap.Error(err))
		after = rec.BeforeBytes
	}

	finished := e.now()
	rec.FinishedAt = &finished
	rec.AfterBytes = after
	rec.Status = status
	rec.ErrorMessage = msg

	if err := e.journal.Update(detached, rec); err != nil {
		e.logger.Error("failed to journal terminal state", zap.Stringer("id", rec.ID), zap.Error(err))
		return errors.Wrapf(err, "journal terminal state of %s", rec.ID)
	}
	return nil
}

// Cancel stops whatever runs on root. It reports whether anything was running.
func (e *Engine) Cancel(root string) bool {
	root, err := normalize(root)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[root]
	if !ok {
		return false
	}
	e.logger.Info("cancelling operation", zap.String("root", root), zap.String("kind", r.kind))
	r.cancel()
	return true
}

// Pause cancels a running compression and remembers its request so Resume can
// start it again. The tool only touches files not yet compressed on the next run.
func (e *Engine) Pause(root string) bool {
	root, err := normalize(root)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[root]
	if !ok || r.request == nil {
		return false
	}
	e.logger.Info("pausing compression", zap.String("root", root))
	r.paused = true
	r.cancel()
	return true
}

// Paused reports whether root has a compression waiting to be resumed.
func (e *Engine) Paused(root string) bool {
	root, err := normalize(root)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.paused[root]
	return ok
}

// Resume starts a fresh compression with the paused request.
func (e *Engine) Resume(ctx context.Context, root string, onProgress func(runner.CompressionProgress)) (*journal.Record, error) {
	root, err := normalize(root)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	req, ok := e.paused[root]
	e.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrNothingToResume, "resume %s", root)
	}
	return e.Compress(ctx, req, onProgress)
}

// Status queries the tool for the directory's current compression state.
func (e *Engine) Status(ctx context.Context, root string) (*runner.StatusSummary, error) {
	root, err := normalize(root)
	if err != nil {
		return nil, err
	}
	sum, res, err := e.runner.QueryStatus(ctx, root)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", root)
	}
	if res != nil && !res.Succeeded() && !res.Cancelled {
		e.logger.Warn("status query exited with failure",
			zap.String("root", root), zap.Int("exit_code", res.ExitCode), zap.Strings("errors", res.ErrorLines))
	}
	return sum, nil
}

func (e *Engine) History(ctx context.Context, n int) ([]*journal.Record, error) {
	return e.journal.Recent(ctx, n)
}

// Recover lists records left InProgress by a crashed process. With markFailed
// they are closed as Failed. Records owned by runs of this engine are left alone.
func (e *Engine) Recover(ctx context.Context, markFailed bool) ([]*journal.Record, error) {
	stuck, err := e.journal.Stuck(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list interrupted operations")
	}

	e.mu.Lock()
	live := make(map[uuid.UUID]struct{}, len(e.runs))
	for _, r := range e.runs {
		if r.recordID != uuid.Nil {
			live[r.recordID] = struct{}{}
		}
	}
	e.mu.Unlock()

	var out []*journal.Record
	for _, rec := range stuck {
		if _, ok := live[rec.ID]; ok {
			continue
		}
		if markFailed {
			finished := e.now()
			rec.FinishedAt = &finished
			rec.AfterBytes = rec.BeforeBytes
			rec.Status = journal.StatusFailed
			rec.ErrorMessage = interruptedMessage
			if err := e.journal.Update(ctx, rec); err != nil {
				return out, errors.Wrapf(err, "mark %s failed", rec.ID)
			}
			e.logger.Info("marked interrupted operation failed", zap.Stringer("id", rec.ID), zap.String("root", rec.Path))
		}
		out = append(out, rec)
	}
	return out, nil
}
