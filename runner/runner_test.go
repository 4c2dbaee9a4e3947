package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const helperEnv = "COMPACTOR_HELPER_PROCESS"

// fakeTool re-executes the test binary as a stand-in for compact.exe.
func fakeTool(scenario string) func(name string, args ...string) *exec.Cmd {
	return func(name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", scenario}, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), helperEnv+"=1")
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	scenario := args[1]
	switch scenario {
	case "ok":
		fmt.Println("Compressing files in C:\\Games\\Foo\\")
		fmt.Println("")
		fmt.Println("data.pak           1048576 :     524288 = 2.0 to 1 [OK]")
		fmt.Println("engine.dll          204800 :     102400 = 2.0 to 1 [OK]")
		fmt.Println("")
		fmt.Println("2 files within 1 directories were compressed.")
		os.Exit(0)
	case "fail":
		for i := 0; i < 30; i++ {
			fmt.Fprintf(os.Stderr, "Access is denied: file%d.bin\n", i)
		}
		os.Exit(3)
	case "hang":
		fmt.Println("Compressing files in /tmp/x/")
		time.Sleep(2 * time.Minute)
		os.Exit(0)
	case "spawn-child":
		// a grandchild that would outlive a single-process kill
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", "hang")
		child.Env = os.Environ()
		child.Stdout = os.Stdout
		if err := child.Start(); err != nil {
			os.Exit(9)
		}
		fmt.Printf("child %d\n", child.Process.Pid)
		child.Wait()
		os.Exit(0)
	case "stdin":
		b, _ := io.ReadAll(os.Stdin)
		fmt.Printf("read %d bytes from stdin\n", len(b))
		os.Exit(0)
	case "args":
		for _, a := range args[2:] {
			fmt.Println(a)
		}
		os.Exit(0)
	case "status":
		fmt.Println(" Listing /tmp/x/")
		fmt.Println("Of 120 files within 3 directories")
		fmt.Println("45 are compressed and 75 are not compressed.")
		fmt.Println("1,234,567 total bytes of data are stored in 456,789 bytes.")
		fmt.Println("The compression ratio is 2.7 to 1.")
		os.Exit(0)
	case "cp850":
		// "Fichier é.txt" in code page 850
		os.Stdout.Write([]byte{'/', 'x', '/', 0x82, '.', 't', 'x', 't', '\n'})
		os.Exit(0)
	}
	os.Exit(2)
}

type progressLog struct {
	mu  sync.Mutex
	all []CompressionProgress
}

func (p *progressLog) add(c CompressionProgress) {
	p.mu.Lock()
	p.all = append(p.all, c)
	p.mu.Unlock()
}

func (p *progressLog) snapshot() []CompressionProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CompressionProgress(nil), p.all...)
}

func newTestRunner(scenario string, cfg Config) *Runner {
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = 10 * time.Millisecond
	}
	return New(cfg, nil, WithCommand(fakeTool(scenario)))
}

func TestRunSuccessParsesFiles(t *testing.T) {
	r := newTestRunner("ok", Config{})
	var log progressLog
	req := Request{Operation: OpCompress, Directory: `C:\Games\Foo`, Options: DefaultOptions(), TotalBytes: 1 << 20, TotalFiles: 4}
	res, err := r.Run(context.Background(), req, log.add)
	require.NoError(t, err)

	assert.True(t, res.Started)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Succeeded())
	assert.Contains(t, res.Stdout, "data.pak")
	assert.Empty(t, res.ErrorLines)

	got := log.snapshot()
	require.NotEmpty(t, got)
	var files []string
	for _, p := range got {
		if p.CurrentFile != "" && (len(files) == 0 || files[len(files)-1] != p.CurrentFile) {
			files = append(files, p.CurrentFile)
		}
	}
	assert.Equal(t, []string{`C:\Games\Foo\data.pak`, `C:\Games\Foo\engine.dll`}, files)

	last := got[len(got)-1]
	assert.Equal(t, 100.0, last.Percent)
	assert.False(t, last.IsBusy)
	assert.Equal(t, "Done", last.Status)
}

func TestRunFailureCollectsBoundedErrorLines(t *testing.T) {
	r := newTestRunner("fail", Config{MaxErrorLines: 5})
	res, err := r.Run(context.Background(), Request{Operation: OpCompress, Directory: "/x", Options: DefaultOptions()}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Cancelled)
	assert.False(t, res.Succeeded())
	require.Len(t, res.ErrorLines, 6)
	assert.Equal(t, "Access is denied: file0.bin", res.ErrorLines[0])
	assert.Equal(t, "... 25 more", res.ErrorLines[5])
	assert.Contains(t, res.Stderr, "file29.bin")
}

func TestRunCancellationKillsProcess(t *testing.T) {
	r := newTestRunner("hang", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	res, err := r.Run(ctx, Request{Operation: OpCompress, Directory: "/tmp/x", Options: DefaultOptions()}, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 30*time.Second)
	assert.True(t, res.Started)
	assert.True(t, res.Cancelled)
	assert.Equal(t, ExitCancelled, res.ExitCode)
}

func TestRunCancellationKillsProcessTree(t *testing.T) {
	r := newTestRunner("spawn-child", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	done := make(chan *Result, 1)
	go func() {
		res, err := r.Run(ctx, Request{Operation: OpCompress, Directory: "/tmp/x", Options: DefaultOptions()}, nil)
		assert.NoError(t, err)
		done <- res
	}()

	// the grandchild shares stdout; Run can only return once it is dead too
	select {
	case res := <-done:
		assert.True(t, res.Cancelled)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not return after cancellation; grandchild still holds the pipe")
	}
}

func TestRunAlreadyCancelledDoesNotStart(t *testing.T) {
	r := newTestRunner("ok", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.Run(ctx, Request{Operation: OpCompress, Directory: "/x"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.True(t, res.Cancelled)
}

func TestRunStdinIsClosed(t *testing.T) {
	r := newTestRunner("stdin", Config{})
	res, err := r.Run(context.Background(), Request{Operation: OpCompress, Directory: "/x"}, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "read 0 bytes from stdin")
}

func TestRunPassesArguments(t *testing.T) {
	r := newTestRunner("args", Config{})
	opts := Options{Recursive: true, ContinueOnError: true, Force: true, Quiet: true, Algorithm: AlgorithmLZX}
	res, err := r.Run(context.Background(), Request{Operation: OpCompress, Directory: "/games/x", Options: opts}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/C\n/S:/games/x\n/I\n/F\n/Q\n/EXE:LZX\n", res.Stdout)
}

func TestRunLaunchFailure(t *testing.T) {
	r := New(Config{Tool: filepath.Join(t.TempDir(), "no-such-tool")}, nil)
	res, err := r.Run(context.Background(), Request{Operation: OpCompress, Directory: "/x"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunch), "%v", err)
	assert.False(t, res.Started)
	assert.False(t, res.Cancelled)
}

func TestHeartbeatProgressIsMonotonic(t *testing.T) {
	r := newTestRunner("hang", Config{Heartbeat: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	var log progressLog
	req := Request{Operation: OpCompress, Directory: "/tmp/x", TotalBytes: 100 << 20, Throughput: 1000 << 20}
	_, err := r.Run(ctx, req, log.add)
	require.NoError(t, err)

	got := log.snapshot()
	require.Greater(t, len(got), 2)
	prev := 0.0
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Percent, prev)
		assert.LessOrEqual(t, p.ProcessedBytes, p.TotalBytes)
		prev = p.Percent
	}
	assert.Equal(t, 100.0, prev, "heartbeat caps at the known total")
	assert.Equal(t, "Cancelled", got[len(got)-1].Status)
}

func TestHeartbeatWithoutTotalIsIndeterminate(t *testing.T) {
	var got []CompressionProgress
	tr := newTracker(func(p CompressionProgress) { got = append(got, p) }, 0, 0, 1<<20, "Compressing")
	tr.heartbeat(tr.started.Add(3 * time.Second))
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Percent)
	assert.True(t, got[0].IsBusy)
	assert.Equal(t, int64(3<<20), got[0].ProcessedBytes)
}

func TestTrackerETA(t *testing.T) {
	var got []CompressionProgress
	tr := newTracker(func(p CompressionProgress) { got = append(got, p) }, 100<<20, 0, 10<<20, "Compressing")
	tr.heartbeat(tr.started.Add(4 * time.Second))
	require.Len(t, got, 1)
	assert.InDelta(t, 40.0, got[0].Percent, 0.01)
	assert.Equal(t, 6*time.Second, got[0].ETA)
	assert.False(t, got[0].IsBusy)
}

func TestQueryStatus(t *testing.T) {
	r := newTestRunner("status", Config{})
	sum, res, err := r.QueryStatus(context.Background(), "/tmp/x")
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.True(t, sum.Parsed)
	assert.Equal(t, int64(120), sum.TotalFiles)
	assert.Equal(t, int64(3), sum.Directories)
	assert.Equal(t, int64(45), sum.Compressed)
	assert.Equal(t, int64(75), sum.Uncompressed)
	assert.InDelta(t, 2.7, sum.Ratio, 1e-9)
}

func TestParseStatusWithoutCounts(t *testing.T) {
	sum := ParseStatus("nothing useful here\n")
	assert.False(t, sum.Parsed)
	assert.Zero(t, sum.TotalFiles)
}

func TestOutputDecoding(t *testing.T) {
	r := newTestRunner("cp850", Config{Encoding: charmap.CodePage850})
	var log progressLog
	res, err := r.Run(context.Background(), Request{Operation: OpCompress, Directory: "/x"}, log.add)
	require.NoError(t, err)
	assert.Equal(t, "/x/é.txt\n", res.Stdout)
}

func TestSettleCleanExitIsNeverCancelled(t *testing.T) {
	res := &Result{Started: true, ExitCode: ExitCancelled}
	// the cancellation landed after the tool had already exited cleanly
	require.NoError(t, settle(res, nil, true))
	assert.False(t, res.Cancelled)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Succeeded())
}

func TestSettle(t *testing.T) {
	exitErr := fakeTool("fail")("compact.exe").Run()
	require.Error(t, exitErr)

	tests := []struct {
		name          string
		waitErr       error
		killRequested bool
		wantCode      int
		wantCancelled bool
		wantErr       bool
	}{
		{name: "clean exit", wantCode: 0},
		{name: "tool failure", waitErr: exitErr, wantCode: 3},
		{name: "killed", waitErr: exitErr, killRequested: true, wantCode: ExitCancelled, wantCancelled: true},
		{name: "wait fault", waitErr: errors.New("i/o error"), wantCode: ExitCancelled, wantErr: true},
		{name: "wait fault after kill", waitErr: errors.New("i/o error"), killRequested: true, wantCode: ExitCancelled, wantCancelled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{ExitCode: ExitCancelled}
			err := settle(res, tt.waitErr, tt.killRequested)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.wantCancelled, res.Cancelled)
		})
	}
}
