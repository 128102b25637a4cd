package game

import (
	"testing"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// playOpening plays four human moves from the initial position.
func playOpening(h *harness) {
	h.play(shogi.Pos(6, 2), shogi.Pos(5, 2))
	h.play(shogi.Pos(2, 6), shogi.Pos(3, 6))
	h.play(shogi.Pos(6, 6), shogi.Pos(5, 6))
	h.play(shogi.Pos(2, 2), shogi.Pos(3, 2))
}

func TestReplayRoundTrip(t *testing.T) {
	h := newHarness(t, ModeHuman)
	playOpening(h)
	live := h.game.Grid()
	hist := h.game.History()
	if len(hist) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(hist))
	}

	if !h.game.Replay(1) {
		t.Fatalf("Replay(1) refused")
	}
	st := h.game.State()
	if !st.Browsing || st.MoveIndex != 3 {
		t.Fatalf("browsing an earlier entry must not move the cursor: %+v", st)
	}
	if h.game.Grid() != hist[1].Board {
		t.Fatalf("board should show entry 1")
	}
	if h.game.Turn() != shogi.Sente {
		t.Fatalf("turn after a gote move should be sente")
	}

	h.game.HandleCellClick(shogi.Pos(6, 6))
	if h.game.Selection().From != nil {
		t.Fatalf("board input must be ignored while browsing")
	}

	if !h.game.Replay(3) {
		t.Fatalf("Replay(3) refused")
	}
	if h.game.Browsing() || h.game.Grid() != live {
		t.Fatalf("replaying the last entry should return to the live position")
	}
}

func TestReplayInitialPosition(t *testing.T) {
	h := newHarness(t, ModeHuman)
	playOpening(h)

	if !h.game.Replay(-1) {
		t.Fatalf("Replay(-1) refused")
	}
	if h.game.Grid() != shogi.InitialGrid() || h.game.Turn() != shogi.Sente || !h.game.Browsing() {
		t.Fatalf("expected the initial position in browsing mode")
	}
	if c := h.game.Captured(); len(c.Sente)+len(c.Gote) != 0 {
		t.Fatalf("hands should be empty at the start: %+v", c)
	}
}

func TestReplayOutOfRange(t *testing.T) {
	h := newHarness(t, ModeHuman)
	playOpening(h)
	before := h.game.State()

	for _, idx := range []int{-2, 4, 100} {
		if h.game.Replay(idx) {
			t.Fatalf("Replay(%d) should be refused", idx)
		}
	}
	if h.game.State() != before {
		t.Fatalf("refused replay must not change state")
	}
}

func TestReplayOnEmptyHistory(t *testing.T) {
	h := newHarness(t, ModeHuman)

	if !h.game.Replay(-1) {
		t.Fatalf("Replay(-1) should be accepted on an empty history")
	}
	if h.game.Browsing() {
		t.Fatalf("the initial position is the live position of an empty history")
	}
}

func TestUndoThenBranchTruncates(t *testing.T) {
	h := newHarness(t, ModeHuman)
	playOpening(h)

	if !h.game.Undo() || !h.game.Undo() {
		t.Fatalf("undo refused")
	}
	if h.game.MoveIndex() != 1 || h.game.Turn() != shogi.Sente {
		t.Fatalf("expected cursor 1 with sente to move, got %+v", h.game.State())
	}
	if got := len(h.game.Moves()); got != 2 {
		t.Fatalf("Moves should stop at the cursor, got %d", got)
	}

	h.play(shogi.Pos(6, 0), shogi.Pos(5, 0))

	hist := h.game.History()
	if len(hist) != 3 {
		t.Fatalf("undone branch should be dropped, got %d entries", len(hist))
	}
	if hist[2].Move.Mover() != shogi.Sente {
		t.Fatalf("new entry should be sente's")
	}
	if h.game.MoveIndex() != 2 {
		t.Fatalf("cursor should follow the new entry, got %d", h.game.MoveIndex())
	}
}

func TestUndoRefused(t *testing.T) {
	h := newHarness(t, ModeHuman)
	if h.game.Undo() {
		t.Fatalf("undo at the initial position must be refused")
	}

	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 8): gote(shogi.King),
		shogi.Pos(3, 4): sente(shogi.Silver),
	}, shogi.CapturedSnapshot{})
	h.play(shogi.Pos(3, 4), shogi.Pos(2, 4))
	if h.game.Undo() {
		t.Fatalf("undo must be refused while a promotion is pending")
	}
	if h.game.Replay(-1) {
		t.Fatalf("replay must be refused while a promotion is pending")
	}
}

func TestUndoRestoresCapturedPiece(t *testing.T) {
	h := newHarness(t, ModeHuman)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 0): gote(shogi.King),
		shogi.Pos(4, 4): sente(shogi.Rook),
		shogi.Pos(4, 7): gote(shogi.Pawn),
		shogi.Pos(1, 1): gote(shogi.Silver),
	}, shogi.CapturedSnapshot{})

	h.play(shogi.Pos(4, 4), shogi.Pos(4, 7))
	if got := h.game.Captured().Sente; len(got) != 1 || got[0] != shogi.Pawn {
		t.Fatalf("sente should hold the pawn, got %v", got)
	}
	h.play(shogi.Pos(1, 1), shogi.Pos(2, 1))
	afterCapture := h.game.History()[0]

	if !h.game.Undo() {
		t.Fatalf("undo refused")
	}
	if h.game.Grid() != afterCapture.Board {
		t.Fatalf("undo should restore the position after the capture")
	}
	if got := h.game.Captured().Sente; len(got) != 1 {
		t.Fatalf("hand should survive the undo, got %v", got)
	}
	if h.game.Turn() != shogi.Gote {
		t.Fatalf("gote should be to move again")
	}
}
