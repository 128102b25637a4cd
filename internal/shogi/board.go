package shogi

import "slices"

const (
	Rows = 9
	Cols = 9
)

// Position addresses a cell. Row 0 is gote's back rank; col 0 is the 9-file.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Pos(row, col int) Position { return Position{Row: row, Col: col} }

func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < Rows && p.Col >= 0 && p.Col < Cols
}

// Grid is the full board. It is a value type, so copies are independent.
type Grid [Rows][Cols]Piece

func (g Grid) At(p Position) Piece {
	if !p.InBounds() {
		return Piece{}
	}
	return g[p.Row][p.Col]
}

func (g *Grid) Set(p Position, pc Piece) {
	if p.InBounds() {
		g[p.Row][p.Col] = pc
	}
}

// BoardSnapshot is an immutable copy of the grid.
type BoardSnapshot = Grid

// CapturedSnapshot holds both hands in acquisition order.
type CapturedSnapshot struct {
	Sente []PieceType `json:"sente"`
	Gote  []PieceType `json:"gote"`
}

func (c CapturedSnapshot) Of(p Player) []PieceType {
	if p == Sente {
		return c.Sente
	}
	return c.Gote
}

func (c CapturedSnapshot) Clone() CapturedSnapshot {
	return CapturedSnapshot{
		Sente: slices.Clone(c.Sente),
		Gote:  slices.Clone(c.Gote),
	}
}

// Count returns how many pieces of type t player p holds.
func (c CapturedSnapshot) Count(p Player, t PieceType) int {
	n := 0
	for _, h := range c.Of(p) {
		if h == t {
			n++
		}
	}
	return n
}

// InitialGrid returns the standard starting position.
func InitialGrid() Grid {
	var g Grid
	back := []PieceType{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}
	for col, t := range back {
		g[0][col] = Piece{Type: t, Player: Gote}
		g[8][col] = Piece{Type: t, Player: Sente}
	}
	g[1][1] = Piece{Type: Rook, Player: Gote}
	g[1][7] = Piece{Type: Bishop, Player: Gote}
	g[7][1] = Piece{Type: Bishop, Player: Sente}
	g[7][7] = Piece{Type: Rook, Player: Sente}
	for col := 0; col < Cols; col++ {
		g[2][col] = Piece{Type: Pawn, Player: Gote}
		g[6][col] = Piece{Type: Pawn, Player: Sente}
	}
	return g
}
