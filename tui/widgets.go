package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/tslocum/cview"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/engine"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

func (a *App) displayPath(p string) string {
	if !a.cfg.ReplaceHomeWithTilde || a.userHomeDir == "" {
		return p
	}
	if after, ok := strings.CutPrefix(p, a.userHomeDir); ok {
		p = "~" + after
	}
	return p
}

func algorithmButtons() []string {
	var names []string
	for _, algo := range runner.Algorithms() {
		names = append(names, algo.String())
	}
	return names
}

// begin marks the app busy for one background operation. It returns false
// when something is already running.
func (a *App) begin(activity string) bool {
	if !a.busy.CompareAndSwap(false, true) {
		return false
	}
	a.activity.Store(&activity)
	a.scanProg.Store(nil)
	a.runProg.Store(nil)
	a.trySendUIUpdate(func() { a.footer.SetText(footerStatusBusy()) })
	return true
}

func (a *App) end() {
	a.busy.Store(false)
	a.activity.Store(nil)
}

func (a *App) startAnalysis() {
	if !a.begin("analyze") {
		return
	}
	go func() {
		defer a.end()
		res, err := a.engine.Analyze(a.ctx, a.rootPath, func(p scanner.Progress) { a.scanProg.Store(&p) })
		if err != nil {
			a.logger.Warn("analysis failed", zap.String("root", a.rootPath), zap.Error(err))
			a.trySendUIUpdate(func() {
				a.footer.SetText(footerError("Analysis", err))
			})
			return
		}
		a.mu.Lock()
		a.result = res
		a.mu.Unlock()
		a.trySendUIUpdate(func() {
			a.header.SetText(headerAnalysis(res))
			a.footer.SetText(footerStatusMenu(a.engine.Paused(a.rootPath)))
			a.buildTable()
		})
	}()
}

func (a *App) showAlgorithmSelector() {
	a.algoModal.SetText(fmt.Sprintf("Compress %s\n\nChoose the on-disk format", a.displayPath(a.rootPath)))
	a.showAlgo = true
	a.setRoot(a.algoModal, false)
}

func (a *App) confirm(text string, fn func()) {
	a.confirmModal.SetText(text)
	a.onConfirm = fn
	a.showConfirm = true
	a.setRoot(a.confirmModal, false)
}

func (a *App) confirmCompress(algo runner.Algorithm) {
	var b strings.Builder
	fmt.Fprintf(&b, "Compress %s with %s?\n\n", a.displayPath(a.rootPath), algo)
	a.mu.Lock()
	res := a.result
	a.mu.Unlock()
	if res != nil {
		fmt.Fprintf(&b, "On disk: %s\nEstimated savings: %s",
			humanize.IBytes(uint64(res.TotalSizeOnDisk)), humanize.IBytes(uint64(res.TotalEstimatedSavings)))
		if res.Warning != "" {
			fmt.Fprintf(&b, "\n\nWarning: %s", res.Warning)
		}
	}
	a.confirm(b.String(), func() {
		a.runOperation("compress", func(ctx context.Context, onProgress func(runner.CompressionProgress)) (*journal.Record, error) {
			return a.engine.Compress(ctx, engine.CompressRequest{Root: a.rootPath, Algorithm: algo}, onProgress)
		})
	})
}

func (a *App) confirmRollback() {
	a.confirm(fmt.Sprintf("Decompress %s?\n\nThe last compression of this folder is reversed.", a.displayPath(a.rootPath)), func() {
		a.runOperation("rollback", func(ctx context.Context, onProgress func(runner.CompressionProgress)) (*journal.Record, error) {
			return a.engine.Rollback(ctx, engine.RollbackRequest{Root: a.rootPath}, onProgress)
		})
	})
}

func (a *App) togglePause() {
	if a.IsBusy() {
		if act := a.activity.Load(); act != nil && *act == "compress" {
			a.engine.Pause(a.rootPath)
		}
		return
	}
	if !a.engine.Paused(a.rootPath) {
		return
	}
	a.runOperation("compress", func(ctx context.Context, onProgress func(runner.CompressionProgress)) (*journal.Record, error) {
		return a.engine.Resume(ctx, a.rootPath, onProgress)
	})
}

func (a *App) runOperation(kind string, op func(context.Context, func(runner.CompressionProgress)) (*journal.Record, error)) {
	if !a.begin(kind) {
		return
	}
	go func() {
		defer a.end()
		rec, err := op(a.ctx, func(p runner.CompressionProgress) { a.runProg.Store(&p) })
		switch {
		case rec != nil:
			a.trySendUIUpdate(func() { a.footer.SetText(footerRecord(rec)) })
		case err != nil:
			a.trySendUIUpdate(func() { a.footer.SetText(footerError(kind, err)) })
		}
		if err != nil && !errors.Is(err, engine.ErrCancelled) {
			a.logger.Warn("operation failed", zap.String("kind", kind), zap.Error(err))
		}
		// the analysis is stale once the tool has run
		a.mu.Lock()
		a.result = nil
		a.mu.Unlock()
		time.AfterFunc(3*time.Second, func() {
			if !a.IsBusy() {
				a.trySendUIUpdate(func() { a.footer.SetText(footerStatusMenu(a.engine.Paused(a.rootPath))) })
			}
		})
		a.trySendUIUpdate(func() { a.buildTable() })
	}()
}

func (a *App) buildTable() *cview.Table {
	theme := a.theme
	table := a.table
	table.Clear()

	a.mu.Lock()
	res := a.result
	a.mu.Unlock()
	if res == nil {
		return table
	}

	for row, item := range res.Files {
		fi := item

		savingsCell := cview.NewTableCell(fmt.Sprintf(" %s ", humanize.IBytes(uint64(fi.EstimatedSavings))))
		savingsCell.SetTextColor(theme.green)
		savingsCell.SetAlign(cview.AlignRight)
		// the detail view reads the file back from column 0
		savingsCell.SetReference(&fi)
		table.SetCell(row, 0, savingsCell)

		sizeCell := cview.NewTableCell(fmt.Sprintf(" %s ", humanize.IBytes(uint64(fi.SizeOnDisk))))
		sizeCell.SetTextColor(theme.yellow)
		sizeCell.SetAlign(cview.AlignRight)
		table.SetCell(row, 1, sizeCell)

		ratio := "   -  "
		if fi.EstimatedRatio > 0 {
			ratio = fmt.Sprintf(" %.2f ", fi.EstimatedRatio)
		}
		ratioCell := cview.NewTableCell(ratio)
		ratioCell.SetTextColor(theme.fg)
		table.SetCell(row, 2, ratioCell)

		pathCell := cview.NewTableCell(fi.RelativePath)
		switch {
		case fi.IsCompressed:
			pathCell.SetTextColor(theme.gray)
		case !fi.Compressible:
			pathCell.SetTextColor(theme.red)
		default:
			pathCell.SetTextColor(theme.fg)
		}
		pathCell.SetAlign(cview.AlignLeft)
		pathCell.SetExpansion(1)
		table.SetCell(row, 3, pathCell)
	}

	table.SetBorder(false)
	table.SetBorders(false)
	table.SetSelectable(true, false)
	table.SetSeparator(' ')
	return table
}

func fileDetail(fi *scanner.FileAnalysisInfo) string {
	var detail strings.Builder
	fmt.Fprintf(&detail, "Path: %s\n", fi.Path)
	fmt.Fprintf(&detail, "Size: %s\n", humanize.IBytes(uint64(fi.Size)))
	fmt.Fprintf(&detail, "On disk: %s\n", humanize.IBytes(uint64(fi.SizeOnDisk)))
	if fi.EstimatedRatio > 0 {
		fmt.Fprintf(&detail, "Estimated ratio: %.2f\n", fi.EstimatedRatio)
	}
	fmt.Fprintf(&detail, "Estimated savings: %s\n", humanize.IBytes(uint64(fi.EstimatedSavings)))
	fmt.Fprintf(&detail, "Type: %s\n", fi.Category)
	fmt.Fprintf(&detail, "Last Modified: %s\n", fi.ModTime.Format("2006-01-02 15:04:05 MST"))
	if fi.IsCompressed {
		detail.WriteString("Already compressed\n")
	}
	if fi.SkipReason != "" {
		fmt.Fprintf(&detail, "Skipped: %s\n", fi.SkipReason)
	}
	return detail.String()
}

func (a *App) showItemDetail() {
	row, _ := a.table.GetSelection()
	cell := a.table.GetCell(row, 0)
	if cell == nil {
		return
	}
	fi, ok := cell.GetReference().(*scanner.FileAnalysisInfo)
	if !ok {
		return
	}
	a.detailModal.SetText(fileDetail(fi))
	a.showDetail = true
	a.setRoot(a.detailModal, false)
}

func historyText(records []*journal.Record) string {
	if len(records) == 0 {
		return "No operations recorded yet."
	}
	var b strings.Builder
	for _, r := range records {
		kind := "compress"
		if r.IsRollback {
			kind = "rollback"
		}
		fmt.Fprintf(&b, "%s  %-8s %-10s %-9s %9s  %s\n",
			humanize.Time(r.StartedAt), kind, r.Status, r.Algorithm,
			humanize.IBytes(uint64(max(r.Saved(), 0))), r.Path)
	}
	return b.String()
}

func (a *App) showHistory() {
	records, err := a.engine.History(a.ctx, a.cfg.HistorySize)
	if err != nil {
		a.footer.SetText(footerError("History", err))
		return
	}
	a.detailModal.SetText(historyText(records))
	a.showDetail = true
	a.setRoot(a.detailModal, false)
}

func (a *App) confirmQuit() {
	a.quitModal.SetText("An operation is still running.\n\nCancelling stops the compression tool; files already processed keep their new state.")
	a.showQuit = true
	a.setRoot(a.quitModal, false)
}
