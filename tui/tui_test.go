package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

func identity(s string) string { return s }

func TestDisplayPath(t *testing.T) {
	a := &App{cfg: DefaultConfig(), userHomeDir: "/home/gamer"}
	assert.Equal(t, "~/Games/Foo", a.displayPath("/home/gamer/Games/Foo"))
	assert.Equal(t, "/mnt/Games", a.displayPath("/mnt/Games"))

	a.cfg.ReplaceHomeWithTilde = false
	assert.Equal(t, "/home/gamer/Games/Foo", a.displayPath("/home/gamer/Games/Foo"))
}

func TestFooterCompressProgress(t *testing.T) {
	p := &runner.CompressionProgress{
		Status:         "Compressing",
		Percent:        42.5,
		ProcessedBytes: 425 << 20,
		TotalBytes:     1000 << 20,
		ETA:            61500 * time.Millisecond,
		CurrentFile:    `C:\Games\Foo\data.pak`,
	}
	s := footerCompressProgress(p, identity)
	assert.Contains(t, s, "Compressing  42.5%")
	assert.Contains(t, s, "425 MiB of 1000 MiB")
	assert.Contains(t, s, "ETA 1m2s")
	assert.Contains(t, s, "data.pak")

	busy := footerCompressProgress(&runner.CompressionProgress{Status: "Compressing", IsBusy: true}, identity)
	assert.Contains(t, busy, "working")
	assert.NotContains(t, busy, "%")
}

func TestFooterScanProgressTrimsLongPaths(t *testing.T) {
	p := &scanner.Progress{CurrentFile: "/very/long/path/to/some/deeply/nested/file.bin", FilesScanned: 1200}
	s := footerScanProgress(p, identity, 50)
	assert.Contains(t, s, "1,200 files")
	assert.Contains(t, s, "...")
	assert.Contains(t, s, "file.bin")
	assert.LessOrEqual(t, len(s), 50)
}

func TestFooterRecord(t *testing.T) {
	start := time.Now()
	end := start.Add(95 * time.Second)
	rec := &journal.Record{Status: journal.StatusCompleted, StartedAt: start, FinishedAt: &end, BeforeBytes: 3 << 30, AfterBytes: 1 << 30}
	s := footerRecord(rec)
	assert.Contains(t, s, "[green]Completed")
	assert.Contains(t, s, "saved 2.0 GiB")
	assert.Contains(t, s, "1m35s")

	rec.Status = journal.StatusFailed
	rec.AfterBytes = 4 << 30
	rec.ErrorMessage = "compression tool exited with code 1"
	s = footerRecord(rec)
	assert.Contains(t, s, "[red]Failed")
	assert.Contains(t, s, "grew 1.0 GiB")
	assert.Contains(t, s, "code 1")
}

func TestHeaderAnalysisFlagsWarnings(t *testing.T) {
	res := &scanner.FolderAnalysisResult{FileCount: 1234, TotalSizeOnDisk: 10 << 30, TotalEstimatedSavings: 3 << 30, AverageRatio: 0.7}
	s := headerAnalysis(res)
	assert.Contains(t, s, "1,234")
	assert.Contains(t, s, "3.0 GiB")
	assert.NotContains(t, s, "[red]")

	res.Warning = "volume is FAT32"
	assert.Contains(t, headerAnalysis(res), "[red]")
}

func TestHistoryText(t *testing.T) {
	assert.Equal(t, "No operations recorded yet.", historyText(nil))

	rec := &journal.Record{Path: "/g", Status: journal.StatusRolledBack, IsRollback: true, Algorithm: runner.AlgorithmLZX, StartedAt: time.Now()}
	s := historyText([]*journal.Record{rec})
	assert.Contains(t, s, "rollback")
	assert.Contains(t, s, "RolledBack")
	assert.Contains(t, s, "lzx")
	assert.Contains(t, s, "/g")
}

func TestFileDetail(t *testing.T) {
	fi := &scanner.FileAnalysisInfo{Path: "/g/movie.mp4", Size: 100, SizeOnDisk: 4096, SkipReason: "excluded extension .mp4", Category: "video"}
	s := fileDetail(fi)
	assert.Contains(t, s, "Skipped: excluded extension .mp4")
	assert.Contains(t, s, "Type: video")
	assert.NotContains(t, s, "Estimated ratio")
}

func TestAlgorithmButtonsParse(t *testing.T) {
	for _, name := range algorithmButtons() {
		_, err := runner.ParseAlgorithm(name)
		assert.NoError(t, err, name)
	}
}
