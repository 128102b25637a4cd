package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// Request is what the move supplier sees of the game.
type Request struct {
	Player     shogi.Player
	Strategy   string
	Board      shogi.BoardSnapshot
	Captured   shogi.CapturedSnapshot
	Candidates []shogi.MoveDescriptor
	Moves      []shogi.MoveDescriptor
}

// Reply is the supplier's answer. Err != nil marks a failed request; Status
// is shown to the user either way.
type Reply struct {
	Move   shogi.MoveDescriptor
	Status string
	Err    error
}

// MoveSupplier chooses a move for the automated side. SelectMove runs off
// the game goroutine and must honour ctx.
type MoveSupplier interface {
	SelectMove(ctx context.Context, req Request) Reply
}

// task is the single in-flight opponent request.
type task struct {
	cancel  context.CancelFunc
	started time.Time
}

func (g *Game) thinking() bool { return g.pending != nil }

func (g *Game) abandonPending() {
	if g.pending == nil {
		return
	}
	g.pending.cancel()
	g.pending = nil
}

// RetryOpponent re-issues the opponent request after a failure. It returns
// false when the automated side is not to move or a request is in flight.
func (g *Game) RetryOpponent() bool {
	if g.thinking() || g.awaitingPromotion() || !g.opponentDue() {
		return false
	}
	g.requestOpponentMove()
	return g.thinking()
}

func (g *Game) requestOpponentMove() {
	if g.thinking() || !g.opponentDue() {
		return
	}
	g.clearSelection()

	req := Request{
		Player:     g.turn,
		Strategy:   g.prefs.SelectedStrategy(),
		Board:      g.board.Snapshot(),
		Captured:   g.board.SnapshotCaptured(),
		Candidates: g.AllPossibleMoves(g.turn),
		Moves:      g.Moves(),
	}
	ctx, cancel := context.WithCancel(g.ctx)
	t := &task{cancel: cancel, started: time.Now()}
	g.pending = t

	g.logger.Info("opponent_request",
		zap.String("player", string(req.Player)),
		zap.String("strategy", req.Strategy),
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("ply", len(req.Moves)),
	)
	g.emitState()
	g.emit(ThinkingChanged{Status: g.texts.Thinking})

	go func() {
		reply := g.supplier.SelectMove(ctx, req)
		g.sched.Post(func() { g.resolveOpponent(t, reply) })
	}()
}

// resolveOpponent applies a supplier reply on the game goroutine. Replies
// for a task that is no longer pending are dropped.
func (g *Game) resolveOpponent(t *task, reply Reply) {
	if g.pending != t {
		return
	}
	g.pending = nil
	t.cancel()

	g.emit(ThinkingChanged{Status: reply.Status})

	if reply.Err != nil {
		g.failOpponent(reply.Err.Error(), zap.Error(reply.Err))
		return
	}

	switch mv := reply.Move.(type) {
	case shogi.Move:
		if !g.playable(mv) {
			g.failOpponent(g.texts.ForeignPiece, zap.Stringer("move", mv))
			return
		}
		g.logOpponentMove(t, mv)
		g.commitMove(mv.From, mv.To, mv.Promote)

	case shogi.Drop:
		hand := g.board.Hand(g.turn)
		idx := -1
		for i, p := range hand {
			if p == mv.Piece {
				idx = i
				break
			}
		}
		if idx < 0 {
			g.failOpponent(g.texts.MissingDrop, zap.Stringer("move", mv))
			return
		}
		// forced drops skip the oracle but never land off the board or on a piece
		if !mv.To.InBounds() || !g.board.Grid().At(mv.To).IsEmpty() {
			g.failOpponent(g.texts.ForeignPiece, zap.Stringer("move", mv))
			return
		}
		g.logOpponentMove(t, mv)
		sel := capturedSelected{player: g.turn, index: idx, piece: mv.Piece}
		g.sel = sel
		if !g.commitDrop(sel, mv.To, true) {
			g.failOpponent(g.texts.ForeignPiece, zap.Stringer("move", mv))
		}

	default:
		g.failOpponent(g.texts.EmptyReply)
	}
}

// playable reports whether mv is a legal board move for the side to move
// whose promotion flag the rules allow.
func (g *Game) playable(mv shogi.Move) bool {
	grid := g.board.Grid()
	if !mv.From.InBounds() || !mv.To.InBounds() {
		return false
	}
	piece := grid.At(mv.From)
	if !piece.BelongsTo(g.turn) || !g.rules.IsLegalMove(grid, mv.From, mv.To, g.turn) {
		return false
	}
	if mv.Promote {
		return g.rules.CanPromote(grid, mv.From, mv.To)
	}
	return !g.rules.MustPromote(piece.Type, mv.To, g.turn)
}

// failOpponent reports a failed opponent turn. The same side stays to move.
func (g *Game) failOpponent(msg string, fields ...zap.Field) {
	fields = append(fields, zap.String("message", msg), zap.String("player", string(g.turn)))
	g.logger.Warn("opponent_error", fields...)
	g.emitState()
	g.emit(OpponentFailed{Message: msg})
}

func (g *Game) logOpponentMove(t *task, mv shogi.MoveDescriptor) {
	g.logger.Info("opponent_move",
		zap.Stringer("move", mv),
		zap.Duration("elapsed", time.Since(t.started)),
	)
}
