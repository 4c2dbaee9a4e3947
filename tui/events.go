package tui

import (
	"context"
	"time"

	"codeberg.org/tslocum/cview"
)

func (a *App) trySendUIUpdate(f func()) {
	select {
	case a.uiUpdates <- f:
	default:
	}
}

// setRoot queues a SetRoot operation to avoid data races
func (a *App) setRoot(primitive cview.Primitive, focus bool) {
	a.app.QueueUpdateDraw(func() {
		a.app.SetRoot(primitive, focus)
	})
}

// processProgressEvents repaints the footer from the latest progress sample.
// Callbacks from the engine only store the sample, so a burst of per-file
// updates never floods the UI queue.
func (a *App) processProgressEvents(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.ProgressUpdateFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.IsBusy() {
				continue
			}
			if p := a.runProg.Load(); p != nil {
				prog := *p
				a.trySendUIUpdate(func() { a.footer.SetText(footerCompressProgress(&prog, a.displayPath)) })
				continue
			}
			if p := a.scanProg.Load(); p != nil {
				prog := *p
				a.trySendUIUpdate(func() { a.footer.SetText(footerScanProgress(&prog, a.displayPath, a.maxFooterWidth())) })
			}
		}
	}
}

func (a *App) maxFooterWidth() int {
	w, _ := a.app.GetScreenSize()
	return w - 10
}
