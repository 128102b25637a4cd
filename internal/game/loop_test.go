package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi/board"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/rules"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	l := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel, done
}

func TestLoopRunsInOrder(t *testing.T) {
	l, _, _ := startLoop(t)

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 callbacks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("callbacks out of order: %v", got)
		}
	}
}

func TestLoopAfterFunc(t *testing.T) {
	l, _, _ := startLoop(t)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer callback never ran")
	}
}

func TestLoopStopped(t *testing.T) {
	l, cancel, done := startLoop(t)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run should return the context error, got %v", err)
	}

	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("expected ErrLoopStopped, got %v", err)
	}
	// neither call may block or panic after stop
	l.Post(func() {})
	l.AfterFunc(time.Millisecond, func() {})
}

func TestLoopDrivesGame(t *testing.T) {
	l, _, _ := startLoop(t)
	sup := &scriptedSupplier{}
	sup.push(Reply{Err: errors.New("offline")})

	failed := make(chan string, 1)
	var g *Game
	err := l.Do(context.Background(), func() {
		var err error
		g, err = New(Deps{
			Rules:     rules.New(),
			Board:     board.New(),
			Supplier:  sup,
			Prefs:     staticPrefs("random"),
			Scheduler: l,
		}, Options{
			Mode:          ModeSelfPlay,
			OpponentDelay: time.Millisecond,
			OnEvent: func(e Event) {
				if f, ok := e.(OpponentFailed); ok {
					failed <- f.Message
				}
			},
		})
		if err != nil {
			t.Errorf("New: %v", err)
		}
	})
	if err != nil || g == nil {
		t.Fatalf("Do: %v", err)
	}
	defer l.Do(context.Background(), g.Close)

	select {
	case msg := <-failed:
		if msg != "offline" {
			t.Fatalf("unexpected failure message %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("opponent pipeline never completed on the loop")
	}
}
