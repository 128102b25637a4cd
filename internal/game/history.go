package game

import (
	"slices"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// HistoryEntry is a played move and the position right after it.
type HistoryEntry struct {
	Move     shogi.MoveDescriptor   `json:"move"`
	Board    shogi.BoardSnapshot    `json:"board"`
	Captured shogi.CapturedSnapshot `json:"captured"`
}

// history is an arena of immutable entries indexed by cursor and view.
// cursor is the live entry, -1 at the initial position. view is the entry on
// the board and differs from cursor only while browsing.
type history struct {
	entries  []HistoryEntry
	cursor   int
	view     int
	browsing bool
}

func newHistory() history { return history{cursor: -1, view: -1} }

func (h *history) last() int { return len(h.entries) - 1 }

// push drops every entry after the cursor, then appends e.
func (h *history) push(e HistoryEntry) {
	h.entries = append(h.entries[:h.cursor+1:h.cursor+1], e)
	h.cursor = h.last()
	h.view = h.cursor
	h.browsing = false
}

func (h *history) entriesCopy() []HistoryEntry {
	return slices.Clone(h.entries)
}

// record appends m together with the board as it stands after m.
func (g *Game) record(m shogi.MoveDescriptor) {
	g.hist.push(HistoryEntry{
		Move:     m,
		Board:    g.board.Snapshot(),
		Captured: g.board.SnapshotCaptured(),
	})
	g.emitHistory()
}

// Replay shows the position after entry index; -1 is the initial position.
// Viewing anything but the last entry enters browsing mode, which blocks
// board input. It returns false for an out-of-range index and while an
// opponent reply or a promotion choice is outstanding.
func (g *Game) Replay(index int) bool {
	if g.closed || index < -1 || index > g.hist.last() {
		return false
	}
	if g.thinking() || g.awaitingPromotion() {
		return false
	}
	g.restore(index)
	g.hist.view = index
	g.hist.browsing = index != g.hist.last()
	if !g.hist.browsing {
		g.hist.cursor = index
	}
	g.gen++
	g.emitState()
	g.emitCaptured()
	g.scheduleOpponentIfDue()
	return true
}

func (g *Game) restore(index int) {
	g.clearSelection()
	if index == -1 {
		g.board.Reset()
		g.turn = shogi.Sente
		return
	}
	e := g.hist.entries[index]
	g.board.Restore(e.Board)
	g.board.RestoreCaptured(e.Captured.Clone())
	g.turn = e.Move.Mover().Opponent()
}

// Undo takes back the live move at the cursor. It is refused while the
// opponent is thinking or a promotion choice is pending. Undo never asks the
// opponent to move; RetryOpponent does when the automated side is left to
// move.
func (g *Game) Undo() bool {
	if g.closed || g.hist.cursor == -1 || g.thinking() || g.awaitingPromotion() {
		return false
	}
	if g.result.Terminal() {
		g.result = shogi.InProgress
	}
	target := g.hist.cursor - 1
	g.restore(target)
	g.hist.cursor = target
	g.hist.view = target
	g.hist.browsing = false
	g.gen++
	g.emitState()
	g.emitCaptured()
	return true
}

func (g *Game) History() []HistoryEntry { return g.hist.entriesCopy() }

func (g *Game) MoveIndex() int { return g.hist.cursor }

func (g *Game) Browsing() bool { return g.hist.browsing }

// Moves returns the moves leading to the live position.
func (g *Game) Moves() []shogi.MoveDescriptor {
	out := make([]shogi.MoveDescriptor, 0, g.hist.cursor+1)
	for _, e := range g.hist.entries[:g.hist.cursor+1] {
		out = append(out, e.Move)
	}
	return out
}
