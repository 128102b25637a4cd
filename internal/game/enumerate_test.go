package game

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/rules"
)

func TestValidMovesFrom(t *testing.T) {
	h := newHarness(t, ModeHuman)

	got := h.game.ValidMovesFrom(shogi.Pos(6, 2))
	if diff := cmp.Diff([]shogi.Position{shogi.Pos(5, 2)}, got); diff != "" {
		t.Fatalf("pawn destinations (-want +got):\n%s", diff)
	}
	if got := h.game.ValidMovesFrom(shogi.Pos(2, 2)); len(got) != 0 {
		t.Fatalf("opponent piece must yield nothing, got %v", got)
	}
	if got := h.game.ValidMovesFrom(shogi.Pos(4, 4)); len(got) != 0 {
		t.Fatalf("empty cell must yield nothing, got %v", got)
	}

	rook := h.game.ValidMovesFrom(shogi.Pos(7, 7))
	want := []shogi.Position{
		shogi.Pos(7, 2), shogi.Pos(7, 3), shogi.Pos(7, 4), shogi.Pos(7, 5), shogi.Pos(7, 6), shogi.Pos(7, 8),
	}
	if diff := cmp.Diff(want, rook); diff != "" {
		t.Fatalf("rook destinations must be row-major (-want +got):\n%s", diff)
	}
}

func TestAllPossibleMovesInitialPosition(t *testing.T) {
	h := newHarness(t, ModeHuman)
	moves := h.game.AllPossibleMoves(shogi.Sente)
	if len(moves) != 30 {
		t.Fatalf("expected 30 opening moves, got %d", len(moves))
	}
	oracle := rules.New()
	grid := h.game.Grid()
	legal := 0
	for from := range allCells() {
		for to := range allCells() {
			if oracle.IsLegalMove(grid, from, to, shogi.Sente) {
				legal++
			}
		}
	}
	if legal != len(moves) {
		t.Fatalf("enumeration incomplete: oracle accepts %d, enumerated %d", legal, len(moves))
	}
	for _, m := range moves {
		mv, ok := m.(shogi.Move)
		if !ok {
			t.Fatalf("unexpected drop in the opening: %v", m)
		}
		if !oracle.IsLegalMove(grid, mv.From, mv.To, shogi.Sente) {
			t.Fatalf("oracle rejects enumerated move %v", mv)
		}
		if mv.Promote {
			t.Fatalf("no promotion is possible in the opening: %v", mv)
		}
	}
}

func allCells() func(func(shogi.Position) bool) {
	return func(yield func(shogi.Position) bool) {
		for row := 0; row < shogi.Rows; row++ {
			for col := 0; col < shogi.Cols; col++ {
				if !yield(shogi.Pos(row, col)) {
					return
				}
			}
		}
	}
}

func TestAllPossibleMovesPromotionVariants(t *testing.T) {
	h := newHarness(t, ModeHuman)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 8): gote(shogi.King),
		shogi.Pos(3, 4): sente(shogi.Silver),
		shogi.Pos(1, 0): sente(shogi.Pawn),
		shogi.Pos(5, 6): sente(shogi.Gold),
	}, shogi.CapturedSnapshot{})

	var silverTo24, pawnTo00, goldTo46 []bool
	for _, m := range h.game.AllPossibleMoves(shogi.Sente) {
		mv := m.(shogi.Move)
		switch {
		case mv.From == shogi.Pos(3, 4) && mv.To == shogi.Pos(2, 4):
			silverTo24 = append(silverTo24, mv.Promote)
		case mv.From == shogi.Pos(1, 0) && mv.To == shogi.Pos(0, 0):
			pawnTo00 = append(pawnTo00, mv.Promote)
		case mv.From == shogi.Pos(5, 6) && mv.To == shogi.Pos(4, 6):
			goldTo46 = append(goldTo46, mv.Promote)
		}
	}
	if diff := cmp.Diff([]bool{true, false}, silverTo24); diff != "" {
		t.Fatalf("optional promotion must yield both variants (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true}, pawnTo00); diff != "" {
		t.Fatalf("obligatory promotion must yield promote=true only (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false}, goldTo46); diff != "" {
		t.Fatalf("impossible promotion must yield promote=false only (-want +got):\n%s", diff)
	}
}

func TestAllPossibleMovesOrdering(t *testing.T) {
	h := newHarness(t, ModeHuman)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 0): gote(shogi.King),
		shogi.Pos(4, 4): sente(shogi.Gold),
	}, shogi.CapturedSnapshot{Sente: []shogi.PieceType{shogi.Pawn, shogi.Gold, shogi.Pawn}})

	moves := h.game.AllPossibleMoves(shogi.Sente)
	seenDrop := false
	var dropTypes []shogi.PieceType
	prev := -1
	for _, m := range moves {
		switch mv := m.(type) {
		case shogi.Move:
			if seenDrop {
				t.Fatalf("board move %v after drops", mv)
			}
			key := ((mv.From.Row*9+mv.From.Col)*9+mv.To.Row)*9 + mv.To.Col
			if key < prev {
				t.Fatalf("board moves not row-major at %v", mv)
			}
			prev = key
		case shogi.Drop:
			seenDrop = true
			if len(dropTypes) == 0 || dropTypes[len(dropTypes)-1] != mv.Piece {
				dropTypes = append(dropTypes, mv.Piece)
			}
		}
	}
	if diff := cmp.Diff([]shogi.PieceType{shogi.Pawn, shogi.Gold}, dropTypes); diff != "" {
		t.Fatalf("drop blocks must follow distinct hand order (-want +got):\n%s", diff)
	}

	drops := 0
	for _, m := range moves {
		if _, ok := m.(shogi.Drop); ok {
			drops++
		}
	}
	// 78 empty cells; pawns also lose the 8 empty cells of the last rank.
	if want := (78 - 8) + 78; drops != want {
		t.Fatalf("expected %d drops, got %d", want, drops)
	}
}

func TestValidDropPositions(t *testing.T) {
	h := newHarness(t, ModeHuman)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 0): gote(shogi.King),
		shogi.Pos(6, 4): sente(shogi.Pawn),
	}, shogi.CapturedSnapshot{Sente: []shogi.PieceType{shogi.Pawn}})

	for _, p := range h.game.ValidDropPositions(shogi.Pawn) {
		if p.Col == 4 {
			t.Fatalf("pawn drop on a file with an own pawn: %+v", p)
		}
		if p.Row == 0 {
			t.Fatalf("pawn drop on the last rank: %+v", p)
		}
	}
}
