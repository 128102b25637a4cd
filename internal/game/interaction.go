package game

import (
	"slices"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// interaction is the selection sub-state. Exactly one variant is active.
type interaction interface{ isInteraction() }

type idle struct{}

type pieceSelected struct {
	from    shogi.Position
	targets []shogi.Position
}

type capturedSelected struct {
	player  shogi.Player
	index   int
	piece   shogi.PieceType
	targets []shogi.Position
}

type awaitingPromotion struct {
	from, to shogi.Position
}

func (idle) isInteraction()              {}
func (pieceSelected) isInteraction()     {}
func (capturedSelected) isInteraction()  {}
func (awaitingPromotion) isInteraction() {}

// Selection is a read view of the interaction state.
type Selection struct {
	From      *shogi.Position   `json:"from,omitempty"`
	HandIndex *int              `json:"handIndex,omitempty"`
	HandPiece shogi.PieceType   `json:"handPiece,omitempty"`
	Targets   []shogi.Position  `json:"targets,omitempty"`
	Promotion *PendingPromotion `json:"promotion,omitempty"`
}

type PendingPromotion struct {
	From shogi.Position `json:"from"`
	To   shogi.Position `json:"to"`
}

func (g *Game) Selection() Selection {
	switch s := g.sel.(type) {
	case pieceSelected:
		from := s.from
		return Selection{From: &from, Targets: slices.Clone(s.targets)}
	case capturedSelected:
		idx := s.index
		return Selection{HandIndex: &idx, HandPiece: s.piece, Targets: slices.Clone(s.targets)}
	case awaitingPromotion:
		return Selection{Promotion: &PendingPromotion{From: s.from, To: s.to}}
	default:
		return Selection{}
	}
}

func (g *Game) awaitingPromotion() bool {
	_, ok := g.sel.(awaitingPromotion)
	return ok
}

// inputBlocked holds while board input must be ignored.
func (g *Game) inputBlocked() bool {
	return g.closed || g.thinking() || g.awaitingPromotion() || g.hist.browsing || g.result.Terminal() ||
		g.mode.Automated(g.turn)
}

func (g *Game) setSelection(s interaction) {
	g.sel = s
	g.emitSelection()
}

func (g *Game) clearSelection() {
	if _, ok := g.sel.(idle); ok {
		return
	}
	g.setSelection(idle{})
}

// HandleCellClick feeds a board click into the selection state machine.
// Clicks that violate a guard or lead nowhere are ignored.
func (g *Game) HandleCellClick(pos shogi.Position) {
	if g.inputBlocked() || !pos.InBounds() {
		return
	}
	grid := g.board.Grid()
	clicked := grid.At(pos)

	switch s := g.sel.(type) {
	case capturedSelected:
		if !slices.Contains(s.targets, pos) {
			g.clearSelection()
			return
		}
		g.commitDrop(s, pos, false)

	case pieceSelected:
		switch {
		case pos == s.from:
			g.clearSelection()
		case clicked.BelongsTo(g.turn):
			g.selectPiece(pos)
		case slices.Contains(s.targets, pos):
			pc := grid.At(s.from)
			mustPromote := g.rules.MustPromote(pc.Type, pos, g.turn)
			if g.rules.CanPromote(grid, s.from, pos) && !mustPromote {
				g.setSelection(awaitingPromotion{from: s.from, to: pos})
				g.emit(PromotionRequested{From: s.from, To: pos})
				return
			}
			g.commitMove(s.from, pos, mustPromote)
		default:
			g.clearSelection()
		}

	default:
		if clicked.BelongsTo(g.turn) {
			g.selectPiece(pos)
		}
	}
}

func (g *Game) selectPiece(pos shogi.Position) {
	g.setSelection(pieceSelected{from: pos, targets: g.ValidMovesFrom(pos)})
}

// HandleCapturedClick selects the index-th piece of player's hand.
func (g *Game) HandleCapturedClick(player shogi.Player, index int) {
	if g.inputBlocked() || player != g.turn {
		return
	}
	hand := g.board.Hand(player)
	if index < 0 || index >= len(hand) {
		return
	}
	piece := hand[index]
	g.setSelection(capturedSelected{
		player:  player,
		index:   index,
		piece:   piece,
		targets: g.ValidDropPositions(piece),
	})
}

// ResolvePromotion answers a pending promotion choice. It returns false when
// no choice is pending.
func (g *Game) ResolvePromotion(accept bool) bool {
	s, ok := g.sel.(awaitingPromotion)
	if !ok || g.closed {
		return false
	}
	g.commitMove(s.from, s.to, accept)
	return true
}

// commitMove applies, records and hands the turn over.
func (g *Game) commitMove(from, to shogi.Position, promote bool) {
	piece := g.board.Grid().At(from)
	captured, took := g.board.MovePiece(from, to, promote)
	mv := shogi.Move{
		Player:  g.turn,
		From:    from,
		To:      to,
		Piece:   piece.Type,
		Promote: promote,
	}
	if took {
		mv.Capture = captured.Type
	}
	g.sel = idle{}
	g.record(mv)
	g.emitSelection()
	g.emitCaptured()
	if took && captured.Type == shogi.Royal {
		g.finish(g.turn)
	}
	g.nextTurn()
}

// commitDrop applies a drop of the selected hand piece. force skips the
// board's own legality check.
func (g *Game) commitDrop(s capturedSelected, to shogi.Position, force bool) bool {
	if !g.board.DropPiece(s.piece, s.player, to, force) {
		g.clearSelection()
		return false
	}
	g.sel = idle{}
	g.record(shogi.Drop{Player: s.player, Piece: s.piece, To: to})
	g.emitSelection()
	g.emitCaptured()
	g.nextTurn()
	return true
}
