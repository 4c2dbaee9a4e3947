// Package runner drives compact.exe as a child process: it builds the
// command line, pumps output, reports heartbeat progress and kills the whole
// process tree on cancellation.
package runner

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const (
	DefaultTool          = "compact.exe"
	DefaultHeartbeat     = time.Second
	DefaultMaxErrorLines = 20

	// ExitCancelled is reported when the process was killed on request.
	ExitCancelled = -1
)

// ErrLaunch marks failures to start the tool at all.
var ErrLaunch = errors.New("failed to launch compression tool")

// Request describes one run over a directory.
type Request struct {
	Operation Operation
	Directory string
	Options   Options

	// Totals known from a prior analysis, 0 when unknown.
	TotalBytes int64
	TotalFiles int64
	// Assumed bytes per second used by the heartbeat.
	Throughput float64
}

// Result is what the process did. Cancelled is independent of ExitCode.
type Result struct {
	ExitCode   int
	Started    bool
	Cancelled  bool
	Stdout     string
	Stderr     string
	ErrorLines []string
	Duration   time.Duration
}

// Succeeded reports a clean exit that was not cancelled.
func (r *Result) Succeeded() bool {
	return r != nil && r.Started && !r.Cancelled && r.ExitCode == 0
}

type Config struct {
	Tool          string
	Heartbeat     time.Duration
	MaxErrorLines int
	// Encoding decodes tool output, nil for UTF-8/ASCII passthrough.
	Encoding encoding.Encoding
}

type Runner struct {
	tool          string
	heartbeat     time.Duration
	maxErrorLines int
	enc           encoding.Encoding
	logger        *zap.Logger

	// newObserver builds a fresh parser per run
	newObserver func() ProgressObserver
	command     func(name string, args ...string) *exec.Cmd
}

type Option func(*Runner)

func WithObserver(f func() ProgressObserver) Option {
	return func(r *Runner) { r.newObserver = f }
}

func WithCommand(f func(name string, args ...string) *exec.Cmd) Option {
	return func(r *Runner) { r.command = f }
}

func New(cfg Config, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		tool:          cfg.Tool,
		heartbeat:     cfg.Heartbeat,
		maxErrorLines: cfg.MaxErrorLines,
		enc:           cfg.Encoding,
		logger:        logger,
		newObserver:   func() ProgressObserver { return NewCompactOutputObserver() },
		command:       exec.Command,
	}
	if r.tool == "" {
		r.tool = DefaultTool
	}
	if r.heartbeat <= 0 {
		r.heartbeat = DefaultHeartbeat
	}
	if r.maxErrorLines <= 0 {
		r.maxErrorLines = DefaultMaxErrorLines
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes the tool and blocks until it exits or is killed. Cancelling ctx
// kills the process tree and sets Result.Cancelled; that is not an error.
// Only launch failures and pipe/wait faults are returned as errors.
func (r *Runner) Run(ctx context.Context, req Request, onProgress func(CompressionProgress)) (*Result, error) {
	args := BuildArgs(req.Operation, req.Directory, req.Options)
	return r.run(ctx, args, req, onProgress)
}

func (r *Runner) run(ctx context.Context, args []string, req Request, onProgress func(CompressionProgress)) (*Result, error) {
	logger := r.logger.With(zap.String("op", req.Operation.String()), zap.String("dir", req.Directory))
	res := &Result{ExitCode: ExitCancelled}

	if err := ctx.Err(); err != nil {
		res.Cancelled = true
		logger.Info("run cancelled before start")
		return res, nil
	}

	cmd := r.command(r.tool, args...)
	configureCommand(cmd, r.tool, args)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return res, errors.Mark(errors.Wrap(err, "stdin pipe"), ErrLaunch)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return res, errors.Mark(errors.Wrap(err, "stdout pipe"), ErrLaunch)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return res, errors.Mark(errors.Wrap(err, "stderr pipe"), ErrLaunch)
	}

	logger.Info("starting compression tool", zap.String("cmd", CommandLine(r.tool, args)))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Error("failed to start compression tool", zap.Error(err))
		return res, errors.Mark(errors.Wrapf(err, "start %s", r.tool), ErrLaunch)
	}
	res.Started = true
	// the tool must never wait on interactive input
	stdin.Close()

	var cancelled atomic.Bool
	killed := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(killed)
		cancelled.Store(true)
		logger.Info("cancellation requested, killing process tree", zap.Int("pid", cmd.Process.Pid))
		if err := killProcessTree(cmd.Process.Pid); err != nil {
			logger.Warn("process tree kill incomplete", zap.Error(err))
		}
	})

	status := "Compressing"
	if req.Operation == OpUncompress {
		status = "Decompressing"
	}
	track := newTracker(onProgress, req.TotalBytes, req.TotalFiles, req.Throughput, status)
	track.heartbeat(start)

	hbDone := make(chan struct{})
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbDone:
				return
			case now := <-ticker.C:
				track.heartbeat(now)
			}
		}
	}()

	observer := r.newObserver()
	errs := &errorLines{max: r.maxErrorLines}
	var outBuf, errBuf strings.Builder
	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		r.pump(stdout, func(line string) {
			outBuf.WriteString(line)
			outBuf.WriteByte('\n')
			if looksLikeError(line) {
				errs.add(line)
			}
			if file, ok := observer.ObserveLine(line); ok {
				track.file(file)
			}
		})
	}()
	go func() {
		defer pumps.Done()
		r.pump(stderr, func(line string) {
			errBuf.WriteString(line)
			errBuf.WriteByte('\n')
			errs.add(line)
		})
	}()

	// all output must be drained before Wait closes the pipes
	pumps.Wait()
	// the process is not reaped yet, so a kill in flight still targets it
	if !stop() {
		<-killed
	}
	waitErr := cmd.Wait()
	close(hbDone)
	hbWG.Wait()

	res.Duration = time.Since(start)
	res.Stdout = outBuf.String()
	res.Stderr = errBuf.String()
	res.ErrorLines = errs.lines()
	if err := settle(res, waitErr, cancelled.Load()); err != nil {
		return res, err
	}

	switch {
	case res.Cancelled:
		track.finish("Cancelled", false)
	case res.ExitCode == 0:
		track.finish("Done", true)
	default:
		track.finish("Failed", false)
	}

	logger.Info("compression tool exited",
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", res.Duration),
		zap.Int("error_lines", len(res.ErrorLines)))
	return res, nil
}

// settle sets the exit code and the cancelled flag from the wait result. A
// tool that exited cleanly before the kill landed is not cancelled.
func settle(res *Result, waitErr error, killRequested bool) error {
	res.Cancelled = killRequested && waitErr != nil

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case !res.Cancelled:
		return errors.Wrap(waitErr, "wait for compression tool")
	}
	if res.Cancelled {
		res.ExitCode = ExitCancelled
	}
	return nil
}

func (r *Runner) pump(rd io.Reader, fn func(string)) {
	if r.enc != nil {
		rd = transform.NewReader(rd, r.enc.NewDecoder())
	}
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		fn(strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		r.logger.Debug("output pump stopped", zap.Error(err))
		// keep draining so the child never blocks on a full pipe
		io.Copy(io.Discard, rd)
	}
}

func looksLikeError(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, "[err") || strings.Contains(l, "error") ||
		strings.Contains(l, "denied") || strings.Contains(l, "cannot")
}

// errorLines keeps the first max lines and counts the rest.
type errorLines struct {
	mu      sync.Mutex
	max     int
	kept    []string
	dropped int
}

func (e *errorLines) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.kept) < e.max {
		e.kept = append(e.kept, line)
		return
	}
	e.dropped++
}

func (e *errorLines) lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]string(nil), e.kept...)
	if e.dropped > 0 {
		out = append(out, "... "+strconv.Itoa(e.dropped)+" more")
	}
	return out
}
