package game

import (
	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// finish closes the game in favour of winner. The result is set once.
func (g *Game) finish(winner shogi.Player) {
	if g.result.Terminal() {
		return
	}
	g.result = shogi.WinFor(winner)
	g.logger.Info("game_finished",
		zap.String("result", string(g.result)),
		zap.Int("moves", g.hist.cursor+1),
		zap.String("mode", string(g.mode)),
	)
}

// nextTurn hands the move to the other side after a committed move. A
// terminal game does not alternate.
func (g *Game) nextTurn() {
	if g.result.Terminal() {
		g.emitState()
		return
	}
	g.turn = g.turn.Opponent()
	g.emitState()
	g.scheduleOpponentIfDue()
}

// scheduleOpponentIfDue defers an opponent request when the automated side
// is to move. It never calls the supplier synchronously.
func (g *Game) scheduleOpponentIfDue() {
	if !g.opponentDue() {
		return
	}
	gen := g.gen
	g.sched.AfterFunc(g.delay, func() {
		if gen != g.gen {
			return
		}
		g.requestOpponentMove()
	})
}

func (g *Game) opponentDue() bool {
	return !g.closed &&
		!g.result.Terminal() &&
		!g.hist.browsing &&
		g.mode.Automated(g.turn)
}
