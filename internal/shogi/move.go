package shogi

import "fmt"

// MoveDescriptor is either a Move or a Drop.
type MoveDescriptor interface {
	Mover() Player
	Dest() Position
	fmt.Stringer
	isMoveDescriptor()
}

// Move relocates a board piece. Capture is Empty when nothing was taken.
type Move struct {
	Player  Player    `json:"player"`
	From    Position  `json:"from"`
	To      Position  `json:"to"`
	Piece   PieceType `json:"pieceType"`
	Promote bool      `json:"promote"`
	Capture PieceType `json:"capture,omitempty"`
}

// Drop places a piece from hand.
type Drop struct {
	Player Player    `json:"player"`
	Piece  PieceType `json:"pieceType"`
	To     Position  `json:"to"`
}

func (m Move) Mover() Player   { return m.Player }
func (m Move) Dest() Position  { return m.To }
func (Move) isMoveDescriptor() {}

func (d Drop) Mover() Player   { return d.Player }
func (d Drop) Dest() Position  { return d.To }
func (Drop) isMoveDescriptor() {}

func (m Move) String() string {
	s := fmt.Sprintf("%s %s (%d,%d)->(%d,%d)", m.Player, m.Piece, m.From.Row, m.From.Col, m.To.Row, m.To.Col)
	if m.Promote {
		s += "+"
	}
	if m.Capture != Empty {
		s += " x" + string(m.Capture)
	}
	return s
}

func (d Drop) String() string {
	return fmt.Sprintf("%s %s*(%d,%d)", d.Player, d.Piece, d.To.Row, d.To.Col)
}

// SameAction reports whether a and b describe the same action, ignoring Capture.
func SameAction(a, b MoveDescriptor) bool {
	switch x := a.(type) {
	case Move:
		y, ok := b.(Move)
		return ok && x.Player == y.Player && x.From == y.From && x.To == y.To && x.Promote == y.Promote
	case Drop:
		y, ok := b.(Drop)
		return ok && x == y
	default:
		return false
	}
}
