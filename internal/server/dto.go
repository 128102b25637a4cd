package server

import (
	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/notation"
	"github.com/park285/Cheese-Shogi-bot/pkg/shogidto"
)

func toSquare(p shogi.Position) shogidto.Square { return shogidto.Square{Row: p.Row, Col: p.Col} }

func toSquares(ps []shogi.Position) []shogidto.Square {
	if len(ps) == 0 {
		return nil
	}
	out := make([]shogidto.Square, len(ps))
	for i, p := range ps {
		out[i] = toSquare(p)
	}
	return out
}

func toCells(g shogi.Grid) [shogi.Rows][shogi.Cols]shogidto.Cell {
	var out [shogi.Rows][shogi.Cols]shogidto.Cell
	for r := range shogi.Rows {
		for c := range shogi.Cols {
			pc := g[r][c]
			if pc.IsEmpty() {
				continue
			}
			out[r][c] = shogidto.Cell{Piece: string(pc.Type), Player: string(pc.Player)}
		}
	}
	return out
}

func toPieceNames(ts []shogi.PieceType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

// toState renders st over the position currently on the board, which is
// entry st.ViewIndex while browsing.
func toState(st game.State, grid shogi.Grid, hands shogi.CapturedSnapshot) shogidto.State {
	return shogidto.State{
		Player:    string(st.Player),
		Thinking:  st.Thinking,
		Mode:      string(st.Mode),
		Result:    string(st.Result),
		Browsing:  st.Browsing,
		MoveIndex: st.MoveIndex,
		ViewIndex: st.ViewIndex,
		Board:     toCells(grid),
		SFEN:      notation.SFEN(grid, hands, st.Player, st.ViewIndex+2),
	}
}

func toHistory(entries []game.HistoryEntry) shogidto.History {
	moves := make([]shogidto.Move, 0, len(entries))
	var prev *shogi.Position
	for _, e := range entries {
		moves = append(moves, toMove(e.Move, prev))
		to := e.Move.Dest()
		prev = &to
	}
	return shogidto.History{Moves: moves}
}

func toMove(m shogi.MoveDescriptor, prev *shogi.Position) shogidto.Move {
	out := shogidto.Move{
		Player: string(m.Mover()),
		USI:    notation.FormatUSI(m),
		KIF:    notation.KIFMove(m, prev),
		To:     toSquare(m.Dest()),
	}
	switch mv := m.(type) {
	case shogi.Move:
		from := toSquare(mv.From)
		out.From = &from
		out.Piece = string(mv.Piece)
		out.Promote = mv.Promote
	case shogi.Drop:
		out.Piece = string(mv.Piece)
		out.Drop = true
	}
	return out
}

func toSelection(s game.Selection) shogidto.Selection {
	out := shogidto.Selection{
		HandIndex: s.HandIndex,
		HandPiece: string(s.HandPiece),
		Targets:   toSquares(s.Targets),
	}
	if s.From != nil {
		from := toSquare(*s.From)
		out.From = &from
	}
	if s.Promotion != nil {
		out.Promotion = &shogidto.Promotion{From: toSquare(s.Promotion.From), To: toSquare(s.Promotion.To)}
	}
	return out
}
