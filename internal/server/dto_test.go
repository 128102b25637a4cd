package server

import (
	"testing"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

func TestToStateUsesDisplayedPosition(t *testing.T) {
	st := game.State{
		Player:    shogi.Sente,
		Mode:      game.ModeHuman,
		Browsing:  true,
		MoveIndex: 2,
		ViewIndex: -1,
	}
	got := toState(st, shogi.InitialGrid(), shogi.CapturedSnapshot{})
	want := "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"
	if got.SFEN != want {
		t.Fatalf("sfen = %q, want %q", got.SFEN, want)
	}
	if got.MoveIndex != 2 || got.ViewIndex != -1 || !got.Browsing {
		t.Fatalf("unexpected state: %+v", got)
	}
}
