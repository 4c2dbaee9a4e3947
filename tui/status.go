package tui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

func headerStartupStatus(path string) string {
	return fmt.Sprintf("[::b] compactor [::-]| %s", path)
}

func footerStatusMenu(paused bool) string {
	if paused {
		return " [s]: Analyze  [p]: Resume  [r]: Rollback  [h]: History  [i]: Details  [q]: Quit"
	}
	return " [s]: Analyze  [c]: Compress  [r]: Rollback  [h]: History  [i]: Details  [q]: Quit"
}

func footerStatusBusy() string {
	return " [p]: Pause  [x]: Cancel  [q]: Quit"
}

func headerAnalysis(res *scanner.FolderAnalysisResult) string {
	s := fmt.Sprintf(" Files: %s (%s compressed) | On disk: %s | Estimated savings: %s | Ratio: %.2f | %s ",
		humanize.Comma(res.FileCount),
		humanize.Comma(res.CompressedFileCount),
		humanize.IBytes(uint64(res.TotalSizeOnDisk)),
		humanize.IBytes(uint64(res.TotalEstimatedSavings)),
		res.AverageRatio,
		res.Elapsed.Round(time.Millisecond),
	)
	if res.Warning != "" {
		s = "[red]! [-]" + s
	}
	return s
}

func trimLeft(s string, width int) string {
	if width > 3 && len(s) > width {
		return "..." + s[len(s)-width+3:]
	}
	return s
}

func footerScanProgress(p *scanner.Progress, display func(string) string, width int) string {
	prefix := fmt.Sprintf(" Scanning %s files, %s/s: ",
		humanize.Comma(p.FilesScanned), humanize.IBytes(uint64(p.BytesPerSecond)))
	return prefix + trimLeft(display(p.CurrentFile), width-len(prefix))
}

func footerCompressProgress(p *runner.CompressionProgress, display func(string) string) string {
	var pct string
	if p.IsBusy {
		pct = "working"
	} else {
		pct = fmt.Sprintf("%5.1f%%", p.Percent)
	}
	s := fmt.Sprintf(" %s %s", p.Status, pct)
	if p.TotalBytes > 0 {
		s += fmt.Sprintf(" | %s of %s", humanize.IBytes(uint64(p.ProcessedBytes)), humanize.IBytes(uint64(p.TotalBytes)))
	}
	if p.ETA > 0 {
		s += " | ETA " + p.ETA.Round(time.Second).String()
	}
	if p.CurrentFile != "" {
		s += " | " + display(p.CurrentFile)
	}
	return s
}

func footerRecord(rec *journal.Record) string {
	color := "[green]"
	if rec.Status == journal.StatusFailed || rec.Status == journal.StatusCancelled {
		color = "[red]"
	}
	s := fmt.Sprintf(" %s%s[-] in %s", color, rec.Status, rec.Elapsed().Round(time.Second))
	if saved := rec.Saved(); saved >= 0 {
		s += fmt.Sprintf(" | saved %s", humanize.IBytes(uint64(saved)))
	} else {
		s += fmt.Sprintf(" | grew %s", humanize.IBytes(uint64(-saved)))
	}
	if rec.ErrorMessage != "" {
		s += " | " + rec.ErrorMessage
	}
	return s
}

func footerError(action string, err error) string {
	return fmt.Sprintf(" [red]%s failed:[-] %v", action, err)
}
