// Package notation converts between the in-memory model and USI, SFEN and
// KIF text.
package notation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

var ErrBadUSI = errors.New("malformed usi move")

var usiLetters = map[shogi.PieceType]string{
	shogi.Pawn:   "P",
	shogi.Lance:  "L",
	shogi.Knight: "N",
	shogi.Silver: "S",
	shogi.Gold:   "G",
	shogi.Bishop: "B",
	shogi.Rook:   "R",
	shogi.King:   "K",
}

var usiTypes = func() map[string]shogi.PieceType {
	m := make(map[string]shogi.PieceType, len(usiLetters))
	for t, l := range usiLetters {
		m[l] = t
	}
	return m
}()

// Square renders a position as a USI square such as "7g".
func Square(p shogi.Position) string {
	return strconv.Itoa(shogi.Cols-p.Col) + string(rune('a'+p.Row))
}

func parseSquare(s string) (shogi.Position, error) {
	if len(s) != 2 || s[0] < '1' || s[0] > '9' || s[1] < 'a' || s[1] > 'i' {
		return shogi.Position{}, fmt.Errorf("%w: square %q", ErrBadUSI, s)
	}
	return shogi.Pos(int(s[1]-'a'), shogi.Cols-int(s[0]-'0')), nil
}

// FormatUSI renders a move as "7g7f", "8h2b+" or "P*5e".
func FormatUSI(m shogi.MoveDescriptor) string {
	switch mv := m.(type) {
	case shogi.Move:
		s := Square(mv.From) + Square(mv.To)
		if mv.Promote {
			s += "+"
		}
		return s
	case shogi.Drop:
		return usiLetters[mv.Piece] + "*" + Square(mv.To)
	default:
		return ""
	}
}

// ParseUSI decodes a USI move for player, reading piece and capture
// information from g.
func ParseUSI(s string, g shogi.Grid, player shogi.Player) (shogi.MoveDescriptor, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[1] == '*' {
		t, ok := usiTypes[s[:1]]
		if !ok || t == shogi.King {
			return nil, fmt.Errorf("%w: drop piece %q", ErrBadUSI, s[:1])
		}
		to, err := parseSquare(s[2:])
		if err != nil {
			return nil, err
		}
		return shogi.Drop{Player: player, Piece: t, To: to}, nil
	}
	if len(s) != 4 && !(len(s) == 5 && s[4] == '+') {
		return nil, fmt.Errorf("%w: %q", ErrBadUSI, s)
	}
	from, err := parseSquare(s[0:2])
	if err != nil {
		return nil, err
	}
	to, err := parseSquare(s[2:4])
	if err != nil {
		return nil, err
	}
	pc := g.At(from)
	if !pc.BelongsTo(player) {
		return nil, fmt.Errorf("%w: no %s piece on %s", ErrBadUSI, player, s[0:2])
	}
	return shogi.Move{
		Player:  player,
		From:    from,
		To:      to,
		Piece:   pc.Type,
		Promote: len(s) == 5,
		Capture: g.At(to).Type,
	}, nil
}

func pieceLetter(pc shogi.Piece) string {
	base := pc.Type.Demoted()
	l := usiLetters[base]
	if pc.Player == shogi.Gote {
		l = strings.ToLower(l)
	}
	if pc.Type.IsPromoted() {
		l = "+" + l
	}
	return l
}

// SFEN renders a position. moveNumber starts at 1.
func SFEN(g shogi.Grid, hands shogi.CapturedSnapshot, toMove shogi.Player, moveNumber int) string {
	var b strings.Builder
	for row := 0; row < shogi.Rows; row++ {
		if row > 0 {
			b.WriteByte('/')
		}
		empty := 0
		for col := 0; col < shogi.Cols; col++ {
			pc := g[row][col]
			if pc.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			b.WriteString(pieceLetter(pc))
		}
		if empty > 0 {
			b.WriteString(strconv.Itoa(empty))
		}
	}
	if toMove == shogi.Gote {
		b.WriteString(" w ")
	} else {
		b.WriteString(" b ")
	}
	b.WriteString(handSFEN(hands))
	b.WriteByte(' ')
	if moveNumber < 1 {
		moveNumber = 1
	}
	b.WriteString(strconv.Itoa(moveNumber))
	return b.String()
}

func handSFEN(hands shogi.CapturedSnapshot) string {
	var b strings.Builder
	for _, p := range []shogi.Player{shogi.Sente, shogi.Gote} {
		for _, t := range shogi.HandTypes {
			n := hands.Count(p, t)
			if n == 0 {
				continue
			}
			if n > 1 {
				b.WriteString(strconv.Itoa(n))
			}
			b.WriteString(pieceLetter(shogi.Piece{Type: t, Player: p}))
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}
