package board

import (
	"slices"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// DropValidator is consulted by non-forced drops.
type DropValidator interface {
	CanDrop(b shogi.Grid, to shogi.Position, t shogi.PieceType, p shogi.Player) bool
}

// Board holds the grid and both hands. It is not safe for concurrent use.
type Board struct {
	grid      shogi.Grid
	hands     map[shogi.Player][]shogi.PieceType
	validator DropValidator
}

type Option func(*Board)

func WithDropValidator(v DropValidator) Option {
	return func(b *Board) { b.validator = v }
}

func New(opts ...Option) *Board {
	b := &Board{}
	for _, opt := range opts {
		opt(b)
	}
	b.Reset()
	return b
}

func (b *Board) Reset() {
	b.grid = shogi.InitialGrid()
	b.hands = map[shogi.Player][]shogi.PieceType{
		shogi.Sente: nil,
		shogi.Gote:  nil,
	}
}

func (b *Board) Grid() shogi.Grid { return b.grid }

func (b *Board) Hand(p shogi.Player) []shogi.PieceType {
	return slices.Clone(b.hands[p])
}

// MovePiece relocates the piece at from. A captured piece is demoted and
// appended to the mover's hand; it is also returned.
func (b *Board) MovePiece(from, to shogi.Position, promote bool) (shogi.Piece, bool) {
	pc := b.grid.At(from)
	if pc.IsEmpty() || !to.InBounds() {
		return shogi.Piece{}, false
	}
	captured := b.grid.At(to)
	if !captured.IsEmpty() {
		b.hands[pc.Player] = append(b.hands[pc.Player], captured.Type.Demoted())
	}
	if promote {
		pc.Type = pc.Type.Promoted()
	}
	b.grid.Set(to, pc)
	b.grid.Set(from, shogi.Piece{})
	return captured, !captured.IsEmpty()
}

// DropPiece places the first held piece of type t. Unless force is set the
// target must be empty and accepted by the drop validator.
func (b *Board) DropPiece(t shogi.PieceType, p shogi.Player, to shogi.Position, force bool) bool {
	idx := slices.Index(b.hands[p], t)
	if idx < 0 || !to.InBounds() {
		return false
	}
	if !force {
		if !b.grid.At(to).IsEmpty() {
			return false
		}
		if b.validator != nil && !b.validator.CanDrop(b.grid, to, t, p) {
			return false
		}
	}
	b.hands[p] = slices.Delete(b.hands[p], idx, idx+1)
	b.grid.Set(to, shogi.Piece{Type: t, Player: p})
	return true
}

func (b *Board) Snapshot() shogi.BoardSnapshot { return b.grid }

func (b *Board) Restore(s shogi.BoardSnapshot) { b.grid = s }

func (b *Board) SnapshotCaptured() shogi.CapturedSnapshot {
	return shogi.CapturedSnapshot{
		Sente: slices.Clone(b.hands[shogi.Sente]),
		Gote:  slices.Clone(b.hands[shogi.Gote]),
	}
}

func (b *Board) RestoreCaptured(s shogi.CapturedSnapshot) {
	b.hands = map[shogi.Player][]shogi.PieceType{
		shogi.Sente: slices.Clone(s.Sente),
		shogi.Gote:  slices.Clone(s.Gote),
	}
}
