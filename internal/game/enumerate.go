package game

import "github.com/park285/Cheese-Shogi-bot/internal/shogi"

// ValidMovesFrom lists, in row-major order, the destinations the oracle
// accepts for the piece at pos. It is empty unless that piece belongs to
// the player to move.
func (g *Game) ValidMovesFrom(pos shogi.Position) []shogi.Position {
	grid := g.board.Grid()
	if !grid.At(pos).BelongsTo(g.turn) {
		return nil
	}
	return g.destinations(grid, pos, g.turn)
}

func (g *Game) destinations(grid shogi.Grid, from shogi.Position, p shogi.Player) []shogi.Position {
	var out []shogi.Position
	for row := 0; row < shogi.Rows; row++ {
		for col := 0; col < shogi.Cols; col++ {
			to := shogi.Pos(row, col)
			if g.rules.IsLegalMove(grid, from, to, p) {
				out = append(out, to)
			}
		}
	}
	return out
}

// ValidDropPositions lists the cells where the player to move may drop t.
func (g *Game) ValidDropPositions(t shogi.PieceType) []shogi.Position {
	return g.dropTargets(g.board.Grid(), t, g.turn)
}

func (g *Game) dropTargets(grid shogi.Grid, t shogi.PieceType, p shogi.Player) []shogi.Position {
	var out []shogi.Position
	for row := 0; row < shogi.Rows; row++ {
		for col := 0; col < shogi.Cols; col++ {
			to := shogi.Pos(row, col)
			if g.rules.CanDrop(grid, to, t, p) {
				out = append(out, to)
			}
		}
	}
	return out
}

// AllPossibleMoves enumerates every legal action of p. Board moves come first
// ordered by (from, to) row-major, each destination expanded into its
// promotion variants (promote=true before promote=false). Drops follow, one
// block per distinct held piece type in hand order, each block row-major.
func (g *Game) AllPossibleMoves(p shogi.Player) []shogi.MoveDescriptor {
	grid := g.board.Grid()
	var out []shogi.MoveDescriptor

	for row := 0; row < shogi.Rows; row++ {
		for col := 0; col < shogi.Cols; col++ {
			from := shogi.Pos(row, col)
			pc := grid.At(from)
			if !pc.BelongsTo(p) {
				continue
			}
			for _, to := range g.destinations(grid, from, p) {
				base := shogi.Move{Player: p, From: from, To: to, Piece: pc.Type, Capture: grid.At(to).Type}
				for _, promote := range g.promotionVariants(grid, pc.Type, from, to, p) {
					mv := base
					mv.Promote = promote
					out = append(out, mv)
				}
			}
		}
	}

	for _, t := range distinct(g.board.Hand(p)) {
		for _, to := range g.dropTargets(grid, t, p) {
			out = append(out, shogi.Drop{Player: p, Piece: t, To: to})
		}
	}
	return out
}

func (g *Game) promotionVariants(grid shogi.Grid, t shogi.PieceType, from, to shogi.Position, p shogi.Player) []bool {
	if !g.rules.CanPromote(grid, from, to) {
		return []bool{false}
	}
	if g.rules.MustPromote(t, to, p) {
		return []bool{true}
	}
	return []bool{true, false}
}

func distinct(hand []shogi.PieceType) []shogi.PieceType {
	seen := make(map[shogi.PieceType]struct{}, len(hand))
	out := make([]shogi.PieceType, 0, len(hand))
	for _, t := range hand {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
