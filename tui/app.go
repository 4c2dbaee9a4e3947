package tui

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"codeberg.org/tslocum/cview"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/engine"
	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

// Engine is what the front end needs from the orchestrator.
type Engine interface {
	Analyze(ctx context.Context, root string, onProgress func(scanner.Progress)) (*scanner.FolderAnalysisResult, error)
	Compress(ctx context.Context, req engine.CompressRequest, onProgress func(runner.CompressionProgress)) (*journal.Record, error)
	Rollback(ctx context.Context, req engine.RollbackRequest, onProgress func(runner.CompressionProgress)) (*journal.Record, error)
	Resume(ctx context.Context, root string, onProgress func(runner.CompressionProgress)) (*journal.Record, error)
	Cancel(root string) bool
	Pause(root string) bool
	Paused(root string) bool
	History(ctx context.Context, n int) ([]*journal.Record, error)
}

type App struct {
	app    *cview.Application
	engine Engine
	logger *zap.Logger
	cfg    Config

	header       *cview.TextView
	footer       *cview.TextView
	table        *cview.Table
	panels       *cview.Panels
	layout       *cview.Flex
	detailModal  *cview.Modal
	confirmModal *cview.Modal
	algoModal    *cview.Modal
	quitModal    *cview.Modal

	rootPath string
	theme    Theme

	// modal state, only touched on the UI goroutine
	showDetail  bool
	showConfirm bool
	showAlgo    bool
	showQuit    bool
	onConfirm   func()

	mu     sync.Mutex
	result *scanner.FolderAnalysisResult

	uiUpdates   chan func()
	userHomeDir string

	busy atomic.Bool
	// what the running operation is, for the footer
	activity atomic.Pointer[string]
	scanProg atomic.Pointer[scanner.Progress]
	runProg  atomic.Pointer[runner.CompressionProgress]

	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(eng Engine, rootPath string, cfg Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProgressUpdateFreq <= 0 {
		cfg.ProgressUpdateFreq = DefaultConfig().ProgressUpdateFreq
	}
	theme := defaultTheme()

	header := cview.NewTextView()
	header.SetDynamicColors(true)
	footer := cview.NewTextView()
	footer.SetDynamicColors(true)

	detailModal := cview.NewModal()
	detailModal.AddButtons([]string{"Okay"})

	confirmModal := cview.NewModal()
	confirmModal.AddButtons([]string{"Yes", "Cancel"})

	algoModal := cview.NewModal()
	algoNames := algorithmButtons()
	algoModal.AddButtons(append(algoNames, "Cancel"))

	quitModal := cview.NewModal()
	quitModal.AddButtons([]string{"Wait", "Cancel and Quit"})

	panels := cview.NewPanels()
	table := cview.NewTable()
	panels.AddPanel("table", table, true, true)

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		app:          cview.NewApplication(),
		engine:       eng,
		logger:       logger,
		cfg:          cfg,
		header:       header,
		footer:       footer,
		table:        table,
		panels:       panels,
		detailModal:  detailModal,
		confirmModal: confirmModal,
		algoModal:    algoModal,
		quitModal:    quitModal,
		rootPath:     rootPath,
		theme:        theme,
		uiUpdates:    make(chan func(), 128),
		ctx:          ctx,
		cancel:       cancel,
	}

	flex := cview.NewFlex()
	flex.SetDirection(cview.FlexRow)
	flex.AddItem(header, 1, 0, false)
	flex.AddItem(panels, 0, 1, true)
	flex.AddItem(footer, 1, 0, false)
	a.layout = flex

	a.app.SetInputCapture(a.handleInput)

	detailModal.SetDoneFunc(func(_ int, _ string) {
		a.showDetail = false
		a.setRoot(flex, true)
	})

	confirmModal.SetDoneFunc(func(_ int, buttonLabel string) {
		a.showConfirm = false
		a.setRoot(flex, true)
		fn := a.onConfirm
		a.onConfirm = nil
		if buttonLabel == "Yes" && fn != nil {
			fn()
		}
	})

	algoModal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
		a.showAlgo = false
		a.setRoot(flex, true)
		if buttonIndex >= 0 && buttonIndex < len(algoNames) {
			algo, err := runner.ParseAlgorithm(buttonLabel)
			if err != nil {
				a.logger.Warn("unknown algorithm button", zap.String("label", buttonLabel))
				return
			}
			a.confirmCompress(algo)
		}
	})

	quitModal.SetDoneFunc(func(_ int, buttonLabel string) {
		a.showQuit = false
		a.setRoot(flex, true)
		if buttonLabel == "Cancel and Quit" {
			a.Stop()
			a.app.Stop()
		}
	})

	if home, err := os.UserHomeDir(); err == nil {
		a.userHomeDir = home
	} else {
		logger.Warn("cannot resolve home directory", zap.Error(err))
	}

	header.SetTextAlign(cview.AlignCenter)
	header.SetText(headerStartupStatus(a.displayPath(rootPath)))
	footer.SetTextAlign(cview.AlignCenter)
	footer.SetText(footerStatusMenu(false))

	a.applyTheme()
	a.setRoot(flex, true)
	return a
}

func (a *App) applyTheme() {
	th := a.theme

	a.header.SetBackgroundColor(th.headerBg)
	a.header.SetTextColor(th.headerFg)
	a.footer.SetBackgroundColor(th.footerBg)
	a.footer.SetTextColor(th.footerFg)

	for _, m := range []*cview.Modal{a.detailModal, a.confirmModal, a.algoModal, a.quitModal} {
		m.SetBackgroundColor(th.modalBg)
		m.SetTextColor(th.modalFg)
		m.SetButtonBackgroundColor(th.buttonBg)
		m.SetButtonTextColor(th.buttonFg)
	}

	a.table.SetBackgroundColor(th.bg)
	a.panels.SetBackgroundColor(th.bg)
}

// IsBusy reports whether an analysis or a compact run is in flight.
func (a *App) IsBusy() bool {
	return a.busy.Load()
}

// Stop cancels whatever is running on the root folder.
func (a *App) Stop() {
	if a.IsBusy() {
		a.engine.Cancel(a.rootPath)
	}
	a.cancel()
}

func (a *App) Run() error {
	a.logger.Info("starting terminal ui", zap.String("root", a.rootPath), zap.String("theme", a.theme.Name))
	go func() {
		for updateFn := range a.uiUpdates {
			a.app.QueueUpdateDraw(updateFn)
		}
	}()
	go a.processProgressEvents(a.ctx)
	a.startAnalysis()
	return a.app.Run()
}
