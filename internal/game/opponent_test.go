package game

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

// startGoteTurn plays sente's first pawn in llm mode so gote is due.
func startGoteTurn(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, ModeLLM)
	h.play(shogi.Pos(6, 2), shogi.Pos(5, 2))
	if h.sched.pendingTimers() != 1 {
		t.Fatalf("expected one deferred opponent request, got %d", h.sched.pendingTimers())
	}
	if h.supplier.requestCount() != 0 {
		t.Fatalf("supplier must not be called synchronously")
	}
	return h
}

func TestOpponentMoveApplied(t *testing.T) {
	h := startGoteTurn(t)
	reply := shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(3, 6), Piece: shogi.Pawn}
	h.supplier.push(Reply{Move: reply, Status: "歩を進めます"})
	h.events.reset()

	h.sched.fireTimers()
	if !h.game.State().Thinking {
		t.Fatalf("game should be thinking after the request")
	}
	thinking := eventsOf[ThinkingChanged](h.events)
	if len(thinking) != 1 || thinking[0].Status != DefaultTexts().Thinking {
		t.Fatalf("expected the thinking notice, got %+v", thinking)
	}

	h.sched.awaitPost(t)

	req := h.supplier.lastRequest()
	if req.Player != shogi.Gote || req.Strategy != "random" || len(req.Moves) != 1 {
		t.Fatalf("unexpected request: player=%s strategy=%s ply=%d", req.Player, req.Strategy, len(req.Moves))
	}
	if len(req.Candidates) != 30 {
		t.Fatalf("gote should have 30 candidates, got %d", len(req.Candidates))
	}
	if h.game.State().Thinking {
		t.Fatalf("thinking should clear after the reply")
	}
	hist := h.game.History()
	if len(hist) != 2 {
		t.Fatalf("expected two entries, got %d", len(hist))
	}
	if diff := cmp.Diff(shogi.MoveDescriptor(reply), hist[1].Move); diff != "" {
		t.Fatalf("recorded reply (-want +got):\n%s", diff)
	}
	if h.game.Turn() != shogi.Sente {
		t.Fatalf("turn should return to sente")
	}
	statuses := eventsOf[ThinkingChanged](h.events)
	if last := statuses[len(statuses)-1].Status; last != "歩を進めます" {
		t.Fatalf("supplier status should be forwarded, got %q", last)
	}
	if h.sched.pendingTimers() != 0 {
		t.Fatalf("human side must not schedule a request")
	}
}

func TestOpponentErrorKeepsTurn(t *testing.T) {
	h := startGoteTurn(t)
	h.supplier.push(Reply{Err: errors.New("rate limited"), Status: "エラー"})
	h.events.reset()

	h.sched.fireTimers()
	h.sched.awaitPost(t)

	fails := eventsOf[OpponentFailed](h.events)
	if len(fails) != 1 || fails[0].Message != "rate limited" {
		t.Fatalf("expected the supplier error, got %+v", fails)
	}
	if h.game.Turn() != shogi.Gote || len(h.game.History()) != 1 || h.game.State().Thinking {
		t.Fatalf("failed turn must leave the game waiting on gote: %+v", h.game.State())
	}

	reply := shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 0), To: shogi.Pos(3, 0), Piece: shogi.Pawn}
	h.supplier.push(Reply{Move: reply})
	if !h.game.RetryOpponent() {
		t.Fatalf("retry should issue a new request")
	}
	if h.game.RetryOpponent() {
		t.Fatalf("retry must be refused while a request is in flight")
	}
	h.sched.awaitPost(t)
	if len(h.game.History()) != 2 || h.game.Turn() != shogi.Sente {
		t.Fatalf("retried reply should be applied")
	}
	if h.game.RetryOpponent() {
		t.Fatalf("retry must be refused on the human turn")
	}
}

func TestOpponentReplyFailures(t *testing.T) {
	cases := []struct {
		name  string
		reply Reply
		want  string
	}{
		{
			name:  "drop not held",
			reply: Reply{Move: shogi.Drop{Player: shogi.Gote, Piece: shogi.Gold, To: shogi.Pos(4, 4)}},
			want:  DefaultTexts().MissingDrop,
		},
		{
			name:  "no move",
			reply: Reply{},
			want:  DefaultTexts().EmptyReply,
		},
		{
			name:  "foreign piece",
			reply: Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(6, 6), To: shogi.Pos(5, 6), Piece: shogi.Pawn}},
			want:  DefaultTexts().ForeignPiece,
		},
		{
			name:  "destination off the board",
			reply: Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(9, 6), Piece: shogi.Pawn}},
			want:  DefaultTexts().ForeignPiece,
		},
		{
			name:  "takes own piece",
			reply: Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(0, 0), To: shogi.Pos(2, 0), Piece: shogi.Lance}},
			want:  DefaultTexts().ForeignPiece,
		},
		{
			name:  "unreachable square",
			reply: Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(4, 6), Piece: shogi.Pawn}},
			want:  DefaultTexts().ForeignPiece,
		},
		{
			name:  "promotion outside the zone",
			reply: Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(3, 6), Piece: shogi.Pawn, Promote: true}},
			want:  DefaultTexts().ForeignPiece,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := startGoteTurn(t)
			before := h.game.Grid()
			h.supplier.push(tc.reply)
			h.events.reset()

			h.sched.fireTimers()
			h.sched.awaitPost(t)

			fails := eventsOf[OpponentFailed](h.events)
			if len(fails) != 1 || fails[0].Message != tc.want {
				t.Fatalf("expected %q, got %+v", tc.want, fails)
			}
			if h.game.Turn() != shogi.Gote || len(h.game.History()) != 1 {
				t.Fatalf("failed reply must not change the position")
			}
			if h.game.Grid() != before || len(h.game.Captured().Gote) != 0 {
				t.Fatalf("failed reply must leave board and hands untouched")
			}
		})
	}
}

func TestOpponentMustPromote(t *testing.T) {
	h := newHarness(t, ModeLLM)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 0): gote(shogi.King),
		shogi.Pos(6, 0): sente(shogi.Pawn),
		shogi.Pos(7, 4): gote(shogi.Pawn),
	}, shogi.CapturedSnapshot{})
	h.play(shogi.Pos(6, 0), shogi.Pos(5, 0))

	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(7, 4), To: shogi.Pos(8, 4), Piece: shogi.Pawn}})
	h.events.reset()
	h.sched.fireTimers()
	h.sched.awaitPost(t)

	fails := eventsOf[OpponentFailed](h.events)
	if len(fails) != 1 || fails[0].Message != DefaultTexts().ForeignPiece {
		t.Fatalf("unpromoted pawn on the last rank must fail, got %+v", fails)
	}
	if h.game.Turn() != shogi.Gote || len(h.game.History()) != 1 {
		t.Fatalf("failed reply must not change the position")
	}

	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(7, 4), To: shogi.Pos(8, 4), Piece: shogi.Pawn, Promote: true}})
	if !h.game.RetryOpponent() {
		t.Fatalf("retry should issue a new request")
	}
	h.sched.awaitPost(t)
	if got := h.game.Grid().At(shogi.Pos(8, 4)); got != gote(shogi.Tokin) {
		t.Fatalf("promoted pawn expected, got %+v", got)
	}
	if h.game.Turn() != shogi.Sente || len(h.game.History()) != 2 {
		t.Fatalf("promoted reply should be applied")
	}
}

func TestOpponentDropOntoPieceFails(t *testing.T) {
	h := newHarness(t, ModeLLM)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 0): gote(shogi.King),
		shogi.Pos(6, 4): sente(shogi.Pawn),
	}, shogi.CapturedSnapshot{Gote: []shogi.PieceType{shogi.Pawn}})
	h.play(shogi.Pos(6, 4), shogi.Pos(5, 4))

	for _, to := range []shogi.Position{shogi.Pos(5, 4), shogi.Pos(-1, 4)} {
		h.supplier.push(Reply{Move: shogi.Drop{Player: shogi.Gote, Piece: shogi.Pawn, To: to}})
		h.events.reset()
		if h.sched.fireTimers() == 0 && !h.game.RetryOpponent() {
			t.Fatalf("no request issued for drop to %v", to)
		}
		h.sched.awaitPost(t)

		fails := eventsOf[OpponentFailed](h.events)
		if len(fails) != 1 || fails[0].Message != DefaultTexts().ForeignPiece {
			t.Fatalf("drop to %v: expected the illegal move text, got %+v", to, fails)
		}
		if got := h.game.Grid().At(shogi.Pos(5, 4)); got != sente(shogi.Pawn) {
			t.Fatalf("occupied square must keep its piece, got %+v", got)
		}
		if diff := cmp.Diff([]shogi.PieceType{shogi.Pawn}, h.game.Captured().Gote); diff != "" {
			t.Fatalf("gote hand (-want +got):\n%s", diff)
		}
		if h.game.Turn() != shogi.Gote || len(h.game.History()) != 1 {
			t.Fatalf("failed drop must not change the position")
		}
	}
}

func TestHumanCannotPlayAutomatedSide(t *testing.T) {
	h := startGoteTurn(t)
	h.play(shogi.Pos(2, 6), shogi.Pos(3, 6))
	if len(h.game.History()) != 1 || h.game.Selection().From != nil {
		t.Fatalf("clicks on the automated side's turn must be ignored")
	}

	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(3, 6), Piece: shogi.Pawn}})
	if h.sched.fireTimers() != 1 {
		t.Fatalf("deferred request should still be pending")
	}
	h.sched.awaitPost(t)
	if h.supplier.requestCount() != 1 || len(h.game.History()) != 2 || h.game.Turn() != shogi.Sente {
		t.Fatalf("opponent should have played its own move")
	}

	if !h.game.Undo() {
		t.Fatalf("undo should succeed")
	}
	if h.game.Turn() != shogi.Gote || h.sched.pendingTimers() != 0 {
		t.Fatalf("undo leaves gote to move without a request")
	}
	h.play(shogi.Pos(2, 0), shogi.Pos(3, 0))
	if len(h.game.History()) != 2 || h.game.MoveIndex() != 0 {
		t.Fatalf("human must not move for gote after undo")
	}
	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 0), To: shogi.Pos(3, 0), Piece: shogi.Pawn}})
	if !h.game.RetryOpponent() {
		t.Fatalf("retry should hand the turn back to the opponent")
	}
	h.sched.awaitPost(t)
	if h.game.Turn() != shogi.Sente || h.game.MoveIndex() != 1 {
		t.Fatalf("retried reply should be applied")
	}
}

func TestReturnFromBrowsingResumesOpponent(t *testing.T) {
	h := startGoteTurn(t)
	if !h.game.Replay(-1) {
		t.Fatalf("replay should be allowed before the request starts")
	}
	if h.sched.fireTimers() != 1 || h.supplier.requestCount() != 0 {
		t.Fatalf("no request may start while browsing")
	}
	if h.game.State().ViewIndex != -1 || h.game.State().MoveIndex != 0 {
		t.Fatalf("unexpected indexes while browsing: %+v", h.game.State())
	}
	if !h.game.Replay(0) {
		t.Fatalf("replay to the live entry should succeed")
	}
	if h.sched.pendingTimers() != 1 {
		t.Fatalf("returning to the live position should defer a request")
	}
}

func TestOpponentDropIsForced(t *testing.T) {
	h := newHarness(t, ModeLLM)
	h.setup(map[shogi.Position]shogi.Piece{
		shogi.Pos(8, 8): sente(shogi.King),
		shogi.Pos(0, 0): gote(shogi.King),
		shogi.Pos(6, 4): sente(shogi.Pawn),
	}, shogi.CapturedSnapshot{Gote: []shogi.PieceType{shogi.Silver, shogi.Pawn}})
	h.play(shogi.Pos(6, 4), shogi.Pos(5, 4))

	drop := shogi.Drop{Player: shogi.Gote, Piece: shogi.Pawn, To: shogi.Pos(4, 4)}
	h.supplier.push(Reply{Move: drop})
	h.sched.fireTimers()
	h.sched.awaitPost(t)

	if got := h.game.Grid().At(shogi.Pos(4, 4)); got != gote(shogi.Pawn) {
		t.Fatalf("pawn should be dropped, got %+v", got)
	}
	if diff := cmp.Diff([]shogi.PieceType{shogi.Silver}, h.game.Captured().Gote); diff != "" {
		t.Fatalf("gote hand (-want +got):\n%s", diff)
	}
	if h.game.Turn() != shogi.Sente {
		t.Fatalf("turn should pass back to sente")
	}
}

func TestInputBlockedWhileThinking(t *testing.T) {
	h := startGoteTurn(t)
	h.supplier.hold = make(chan struct{})
	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(3, 6), Piece: shogi.Pawn}})

	h.sched.fireTimers()
	h.game.HandleCellClick(shogi.Pos(2, 6))
	if h.game.Selection().From != nil {
		t.Fatalf("clicks must be ignored while thinking")
	}
	if h.game.Undo() || h.game.Replay(-1) {
		t.Fatalf("undo and replay must be refused while thinking")
	}

	close(h.supplier.hold)
	h.sched.awaitPost(t)
	if h.game.State().Thinking || len(h.game.History()) != 2 {
		t.Fatalf("held reply should be applied once released")
	}
}

func TestSelfPlayRetriggersThroughScheduler(t *testing.T) {
	h := newHarness(t, ModeSelfPlay)
	if h.sched.pendingTimers() != 1 {
		t.Fatalf("self-play should schedule sente's first move")
	}
	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Sente, From: shogi.Pos(6, 2), To: shogi.Pos(5, 2), Piece: shogi.Pawn}})

	h.sched.fireTimers()
	h.sched.awaitPost(t)

	if len(h.game.History()) != 1 {
		t.Fatalf("sente's move should be applied")
	}
	if h.supplier.requestCount() != 1 {
		t.Fatalf("gote must not be requested synchronously")
	}
	if h.sched.pendingTimers() != 1 {
		t.Fatalf("gote's request should be deferred")
	}
}

func TestStaleReplyDropped(t *testing.T) {
	h := startGoteTurn(t)
	h.supplier.push(Reply{Move: shogi.Move{Player: shogi.Gote, From: shogi.Pos(2, 6), To: shogi.Pos(3, 6), Piece: shogi.Pawn}})
	h.sched.fireTimers()

	h.game.Initialize()
	h.sched.awaitPost(t)

	if len(h.game.History()) != 0 || h.game.Turn() != shogi.Sente {
		t.Fatalf("reply for an abandoned request must be dropped")
	}
	if h.game.State().Thinking {
		t.Fatalf("new game should not be thinking")
	}
}

func TestStaleTimerIgnored(t *testing.T) {
	h := startGoteTurn(t)
	if err := h.game.SetMode(ModeHuman); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	h.sched.fireTimers()
	if h.supplier.requestCount() != 0 || h.game.State().Thinking {
		t.Fatalf("timer from the previous game must not request a move")
	}
}
