package gamestore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/prefs"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/board"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/rules"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestSaveLoadExpire(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := Snapshot{
		ID:        "g1",
		Mode:      "llm",
		Strategy:  "random",
		Moves:     []string{"7g7f", "3c3d"},
		SFEN:      "sfen",
		Turn:      "sente",
		MoveIndex: 1,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL("shogi:game:g1"); ttl != time.Hour {
		t.Fatalf("expected one hour ttl, got %v", ttl)
	}

	got, err := s.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(snap, *got); diff != "" {
		t.Fatalf("snapshot (-want +got):\n%s", diff)
	}

	mr.FastForward(time.Hour + time.Second)
	if got, err := s.Load(ctx, "g1"); err != nil || got != nil {
		t.Fatalf("expired snapshot should be nil, got %+v (%v)", got, err)
	}
}

func TestMovesReplay(t *testing.T) {
	moves, err := Moves(Snapshot{Moves: []string{"7g7f", "3c3d", "8h2b+", "3a2b", "B*5e"}})
	if err != nil {
		t.Fatalf("Moves: %v", err)
	}
	if len(moves) != 5 {
		t.Fatalf("expected 5 moves, got %d", len(moves))
	}
	takeBishop, ok := moves[2].(shogi.Move)
	if !ok || takeBishop.Player != shogi.Sente || takeBishop.Capture != shogi.Bishop || !takeBishop.Promote {
		t.Fatalf("unexpected third move: %+v", moves[2])
	}
	takeHorse, ok := moves[3].(shogi.Move)
	if !ok || takeHorse.Player != shogi.Gote || takeHorse.Capture != shogi.Horse {
		t.Fatalf("unexpected fourth move: %+v", moves[3])
	}
	drop, ok := moves[4].(shogi.Drop)
	if !ok || drop.Player != shogi.Sente || drop.Piece != shogi.Bishop {
		t.Fatalf("unexpected drop: %+v", moves[4])
	}
}

func TestMovesRejectsUnheldDrop(t *testing.T) {
	if _, err := Moves(Snapshot{Moves: []string{"P*5e"}}); err == nil {
		t.Fatalf("expected error for a drop with an empty hand")
	}
	if _, err := Moves(Snapshot{Moves: []string{"7g7f", "7f7e"}}); err == nil {
		t.Fatalf("expected error for a move of the wrong side")
	}
}

type noopScheduler struct{}

func (noopScheduler) Post(func())                     {}
func (noopScheduler) AfterFunc(time.Duration, func()) {}

type noSupplier struct{}

func (noSupplier) SelectMove(context.Context, game.Request) game.Reply { return game.Reply{} }

func TestCapture(t *testing.T) {
	g, err := game.New(game.Deps{
		Rules:     rules.New(),
		Board:     board.New(board.WithDropValidator(rules.New())),
		Supplier:  noSupplier{},
		Prefs:     prefs.Static("random"),
		Scheduler: noopScheduler{},
	}, game.Options{Mode: game.ModeHuman})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	defer g.Close()

	g.HandleCellClick(shogi.Pos(6, 2))
	g.HandleCellClick(shogi.Pos(5, 2))

	snap := Capture("g2", "random", g, time.Now())
	if diff := cmp.Diff([]string{"7g7f"}, snap.Moves); diff != "" {
		t.Fatalf("moves (-want +got):\n%s", diff)
	}
	want := "lnsgkgsnl/1r5b1/ppppppppp/9/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL w - 2"
	if snap.SFEN != want {
		t.Fatalf("sfen = %q, want %q", snap.SFEN, want)
	}
	if snap.Turn != "gote" || snap.Mode != "human" || snap.MoveIndex != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCaptureWhileBrowsing(t *testing.T) {
	g, err := game.New(game.Deps{
		Rules:     rules.New(),
		Board:     board.New(board.WithDropValidator(rules.New())),
		Supplier:  noSupplier{},
		Prefs:     prefs.Static("random"),
		Scheduler: noopScheduler{},
	}, game.Options{Mode: game.ModeHuman})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	defer g.Close()

	g.HandleCellClick(shogi.Pos(6, 2))
	g.HandleCellClick(shogi.Pos(5, 2))
	g.HandleCellClick(shogi.Pos(2, 6))
	g.HandleCellClick(shogi.Pos(3, 6))
	if !g.Replay(0) {
		t.Fatalf("Replay(0) refused")
	}

	snap := Capture("g3", "random", g, time.Now())
	want := "lnsgkgsnl/1r5b1/pppppp1pp/6p2/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL b - 3"
	if snap.SFEN != want {
		t.Fatalf("sfen = %q, want the live position %q", snap.SFEN, want)
	}
	if snap.Turn != "sente" || snap.MoveIndex != 1 || len(snap.Moves) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
