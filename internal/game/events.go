package game

import "github.com/park285/Cheese-Shogi-bot/internal/shogi"

// Event is delivered to Options.OnEvent on the owning goroutine.
type Event interface {
	EventName() string
}

type StateChanged struct{ State State }

type HistoryChanged struct{ Entries []HistoryEntry }

type CapturedChanged struct{ Captured shogi.CapturedSnapshot }

// ThinkingChanged carries the opponent status line: the thinking notice
// while a request is in flight, then whatever the supplier reported.
type ThinkingChanged struct{ Status string }

type OpponentFailed struct{ Message string }

type PromotionRequested struct{ From, To shogi.Position }

type SelectionChanged struct{ Selection Selection }

func (StateChanged) EventName() string       { return "state" }
func (HistoryChanged) EventName() string     { return "history" }
func (CapturedChanged) EventName() string    { return "captured" }
func (ThinkingChanged) EventName() string    { return "thinking" }
func (OpponentFailed) EventName() string     { return "opponent_error" }
func (PromotionRequested) EventName() string { return "promotion" }
func (SelectionChanged) EventName() string   { return "selection" }

func (g *Game) emitState() { g.emit(StateChanged{State: g.State()}) }

func (g *Game) emitHistory() { g.emit(HistoryChanged{Entries: g.hist.entriesCopy()}) }

func (g *Game) emitCaptured() { g.emit(CapturedChanged{Captured: g.board.SnapshotCaptured()}) }

func (g *Game) emitSelection() { g.emit(SelectionChanged{Selection: g.Selection()}) }
