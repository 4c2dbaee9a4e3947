package tui

import "github.com/gdamore/tcell/v3"

func (a *App) handleInput(event *tcell.EventKey) *tcell.EventKey {
	if a.showDetail || a.showConfirm || a.showAlgo || a.showQuit {
		// vi key binding for modal button selection
		switch event.Str() {
		case "l":
			return tcell.NewEventKey(tcell.KeyRight, tcell.KeyNames[tcell.KeyRight], tcell.ModNone)
		case "h":
			return tcell.NewEventKey(tcell.KeyLeft, tcell.KeyNames[tcell.KeyLeft], tcell.ModNone)
		}
		return event
	}

	switch event.Str() {
	case "s", "S":
		if !a.IsBusy() {
			a.startAnalysis()
		}
		return nil
	case "c", "C":
		if !a.IsBusy() {
			a.showAlgorithmSelector()
		}
		return nil
	case "r", "R":
		if !a.IsBusy() {
			a.confirmRollback()
		}
		return nil
	case "p", "P":
		a.togglePause()
		return nil
	case "x", "X":
		if a.IsBusy() {
			a.engine.Cancel(a.rootPath)
		}
		return nil
	case "h", "H":
		a.showHistory()
		return nil
	case "i", "I":
		a.showItemDetail()
		return nil
	case "q", "Q":
		if a.IsBusy() {
			a.confirmQuit()
			return nil
		}
		a.Stop()
		a.app.Stop()
		return nil
	}

	return event
}
