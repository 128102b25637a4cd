// Package rules answers per-move legality questions for standard shogi.
// It checks piece movement, promotion zones and drop restrictions only;
// check, mate and 打ち歩詰め are not detected.
package rules

import "github.com/park285/Cheese-Shogi-bot/internal/shogi"

type delta struct{ dr, dc int }

var (
	goldSteps   = []delta{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, 0}}
	silverSteps = []delta{{-1, -1}, {-1, 0}, {-1, 1}, {1, -1}, {1, 1}}
	kingSteps   = []delta{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	knightJumps = []delta{{-2, -1}, {-2, 1}}
	orthogonal  = []delta{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	diagonal    = []delta{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

type movement struct {
	steps  []delta
	slides []delta
}

// Deltas are written from sente's point of view; gote flips the row.
var movements = map[shogi.PieceType]movement{
	shogi.Pawn:    {steps: []delta{{-1, 0}}},
	shogi.Lance:   {slides: []delta{{-1, 0}}},
	shogi.Knight:  {steps: knightJumps},
	shogi.Silver:  {steps: silverSteps},
	shogi.Gold:    {steps: goldSteps},
	shogi.King:    {steps: kingSteps},
	shogi.Bishop:  {slides: diagonal},
	shogi.Rook:    {slides: orthogonal},
	shogi.Tokin:   {steps: goldSteps},
	shogi.NariKyo: {steps: goldSteps},
	shogi.NariKei: {steps: goldSteps},
	shogi.NariGin: {steps: goldSteps},
	shogi.Horse:   {steps: orthogonal, slides: diagonal},
	shogi.Dragon:  {steps: diagonal, slides: orthogonal},
}

// Oracle is stateless; the zero value is ready to use.
type Oracle struct{}

func New() Oracle { return Oracle{} }

func (Oracle) IsLegalMove(b shogi.Grid, from, to shogi.Position, player shogi.Player) bool {
	if !from.InBounds() || !to.InBounds() || from == to {
		return false
	}
	pc := b.At(from)
	if !pc.BelongsTo(player) {
		return false
	}
	if b.At(to).BelongsTo(player) {
		return false
	}
	return reaches(&b, pc, from, to)
}

func reaches(b *shogi.Grid, pc shogi.Piece, from, to shogi.Position) bool {
	mv, ok := movements[pc.Type]
	if !ok {
		return false
	}
	sign := 1
	if pc.Player == shogi.Gote {
		sign = -1
	}
	for _, d := range mv.steps {
		if from.Row+d.dr*sign == to.Row && from.Col+d.dc == to.Col {
			return true
		}
	}
	for _, d := range mv.slides {
		cur := shogi.Pos(from.Row+d.dr*sign, from.Col+d.dc)
		for cur.InBounds() {
			if cur == to {
				return true
			}
			if !b.At(cur).IsEmpty() {
				break
			}
			cur = shogi.Pos(cur.Row+d.dr*sign, cur.Col+d.dc)
		}
	}
	return false
}

func (Oracle) CanPromote(b shogi.Grid, from, to shogi.Position) bool {
	pc := b.At(from)
	if pc.IsEmpty() || !pc.Type.Promotable() {
		return false
	}
	return inZone(from, pc.Player) || inZone(to, pc.Player)
}

// MustPromote reports whether t would have no further move from to.
func (Oracle) MustPromote(t shogi.PieceType, to shogi.Position, player shogi.Player) bool {
	rank := relativeRow(to, player)
	switch t {
	case shogi.Pawn, shogi.Lance:
		return rank == 0
	case shogi.Knight:
		return rank <= 1
	default:
		return false
	}
}

func (o Oracle) CanDrop(b shogi.Grid, to shogi.Position, t shogi.PieceType, player shogi.Player) bool {
	if !to.InBounds() || !b.At(to).IsEmpty() {
		return false
	}
	if !t.Valid() || t == shogi.King || t.IsPromoted() {
		return false
	}
	if o.MustPromote(t, to, player) {
		return false
	}
	if t == shogi.Pawn && hasPawnOnFile(&b, to.Col, player) {
		return false
	}
	return true
}

func hasPawnOnFile(b *shogi.Grid, col int, player shogi.Player) bool {
	for row := 0; row < shogi.Rows; row++ {
		pc := b[row][col]
		if pc.Type == shogi.Pawn && pc.Player == player {
			return true
		}
	}
	return false
}

func relativeRow(p shogi.Position, player shogi.Player) int {
	if player == shogi.Gote {
		return shogi.Rows - 1 - p.Row
	}
	return p.Row
}

func inZone(p shogi.Position, player shogi.Player) bool {
	return relativeRow(p, player) <= 2
}
