package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/riadafridishibly/compactor/diskusage"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

func sizeText(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func printVolume(w io.Writer, v diskusage.Volume) {
	support := "compression supported"
	if !v.SupportsCompression {
		support = "no compression support"
	}
	fmt.Fprintf(w, "Volume:             %s %s (%s)", v.Root, v.FileSystem, support)
	if v.TotalBytes > 0 {
		fmt.Fprintf(w, ", %s free of %s", humanize.IBytes(v.FreeBytes), humanize.IBytes(v.TotalBytes))
	}
	fmt.Fprintln(w)
}

func printAnalysis(w io.Writer, res *scanner.FolderAnalysisResult, top int) {
	fmt.Fprintf(w, "Folder:             %s\n", res.RootPath)
	printVolume(w, res.Volume)
	fmt.Fprintf(w, "Files:              %s (%s already compressed)\n",
		humanize.Comma(res.FileCount), humanize.Comma(res.CompressedFileCount))
	fmt.Fprintf(w, "Size:               %s logical, %s on disk\n", sizeText(res.TotalSize), sizeText(res.TotalSizeOnDisk))
	fmt.Fprintf(w, "Estimated savings:  %s (average ratio %.2f)\n", sizeText(res.TotalEstimatedSavings), res.AverageRatio)
	if res.SkippedReparsePoints+res.SkippedFolders+res.FailedEntries > 0 {
		fmt.Fprintf(w, "Skipped:            %d reparse points, %d excluded folders, %d unreadable entries\n",
			res.SkippedReparsePoints, res.SkippedFolders, res.FailedEntries)
	}
	fmt.Fprintf(w, "Elapsed:            %s\n", res.Elapsed.Round(time.Millisecond))
	if res.Warning != "" {
		fmt.Fprintf(w, "Warning:            %s\n", res.Warning)
	}

	if top <= 0 || len(res.Files) == 0 {
		return
	}
	fmt.Fprintf(w, "\nTop files by estimated savings:\n")
	for i, f := range res.Files {
		if i >= top {
			break
		}
		ratio := "  -  "
		if f.EstimatedRatio > 0 {
			ratio = fmt.Sprintf("%.2f", f.EstimatedRatio)
		}
		note := ""
		if !f.Compressible && f.SkipReason != "" {
			note = "  (" + f.SkipReason + ")"
		}
		fmt.Fprintf(w, "  %10s  %10s  %s  %s%s\n", sizeText(f.EstimatedSavings), sizeText(f.SizeOnDisk), ratio, f.RelativePath, note)
	}
}

func kind(r *journal.Record) string {
	if r.IsRollback {
		return "rollback"
	}
	return "compress"
}

func printRecord(w io.Writer, r *journal.Record) {
	fmt.Fprintf(w, "Operation:  %s (%s)\n", r.ID, kind(r))
	fmt.Fprintf(w, "Path:       %s\n", r.Path)
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	fmt.Fprintf(w, "Algorithm:  %s (%s)\n", r.Algorithm, r.Mode)
	fmt.Fprintf(w, "Before:     %s\n", sizeText(r.BeforeBytes))
	fmt.Fprintf(w, "After:      %s\n", sizeText(r.AfterBytes))
	fmt.Fprintf(w, "Saved:      %s\n", sizeText(r.Saved()))
	fmt.Fprintf(w, "Duration:   %s\n", r.Elapsed().Round(time.Second))
	if r.OriginalOperationID != nil {
		fmt.Fprintf(w, "Reverses:   %s\n", r.OriginalOperationID)
	}
	if r.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.ErrorMessage)
	}
}

func printHistory(w io.Writer, records []*journal.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-19s  %-8s  %-10s  %-9s  %10s  %s\n",
			r.ID.String()[:8],
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			kind(r), r.Status, r.Algorithm, sizeText(r.Saved()), r.Path)
	}
}

func printStatus(w io.Writer, s *runner.StatusSummary) {
	if !s.Parsed {
		fmt.Fprintln(w, "Compression state: could not be read from the tool output")
		return
	}
	fmt.Fprintf(w, "Files:              %s in %s directories\n", humanize.Comma(s.TotalFiles), humanize.Comma(s.Directories))
	fmt.Fprintf(w, "Compressed:         %s\n", humanize.Comma(s.Compressed))
	fmt.Fprintf(w, "Not compressed:     %s\n", humanize.Comma(s.Uncompressed))
	if s.Ratio > 0 {
		fmt.Fprintf(w, "Ratio:              %.1f to 1\n", s.Ratio)
	}
}

// progressPrinter rewrites one terminal line with the latest progress.
type progressPrinter struct {
	w    io.Writer
	last time.Time
	// widest line written so far, for clearing
	width int
}

func (p *progressPrinter) update(c runner.CompressionProgress) {
	now := time.Now()
	if now.Sub(p.last) < 200*time.Millisecond && c.Percent < 100 {
		return
	}
	p.last = now
	p.write(progressLine(c))
}

func (p *progressPrinter) write(line string) {
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	if len(line) > p.width {
		p.width = len(line)
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
}

func (p *progressPrinter) done() {
	if p.width > 0 {
		fmt.Fprintln(p.w)
	}
}

func progressLine(c runner.CompressionProgress) string {
	var b strings.Builder
	b.WriteString(c.Status)
	if c.IsBusy {
		b.WriteString(" ...")
	} else {
		fmt.Fprintf(&b, " %5.1f%%", c.Percent)
	}
	if c.TotalBytes > 0 {
		fmt.Fprintf(&b, "  %s / %s", sizeText(c.ProcessedBytes), sizeText(c.TotalBytes))
	}
	if c.BytesPerSecond > 0 {
		fmt.Fprintf(&b, "  %s/s", sizeText(int64(c.BytesPerSecond)))
	}
	if c.ETA > 0 {
		fmt.Fprintf(&b, "  ETA %s", c.ETA.Round(time.Second))
	}
	if c.CurrentFile != "" {
		name := c.CurrentFile
		if len(name) > 40 {
			name = "..." + name[len(name)-37:]
		}
		fmt.Fprintf(&b, "  %s", name)
	}
	return b.String()
}
