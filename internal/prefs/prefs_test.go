package prefs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "random", opts...), mr
}

func TestStoreDefaultsAndPersists(t *testing.T) {
	s, mr := newTestStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	got, err := s.Get(ctx, "sess-1")
	if err != nil || got != "random" {
		t.Fatalf("expected the default, got %q (%v)", got, err)
	}

	if err := s.Set(ctx, "sess-1", "engine:level3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := s.Get(ctx, "sess-1"); got != "engine:level3" {
		t.Fatalf("expected stored strategy, got %q", got)
	}
	if ttl := mr.TTL("shogi:prefs:sess-1"); ttl != time.Hour {
		t.Fatalf("expected a one hour ttl, got %v", ttl)
	}
}

func TestStoreValidates(t *testing.T) {
	s, _ := newTestStore(t, WithValidator(func(id string) bool { return !strings.HasPrefix(id, "bogus") }))
	ctx := context.Background()

	if err := s.Set(ctx, "a", "  "); !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("blank strategy should be rejected, got %v", err)
	}
	if err := s.Set(ctx, "a", "bogus:1"); !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("validator should reject, got %v", err)
	}
}

func TestSessionSelect(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "sess-2", "llm:model-a"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	p, err := s.Open(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.SelectedStrategy() != "llm:model-a" {
		t.Fatalf("Open should load the stored strategy, got %q", p.SelectedStrategy())
	}
	if err := p.Select(ctx, "engine:level1"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.SelectedStrategy() != "engine:level1" {
		t.Fatalf("Select should update the cached strategy")
	}
	if got, _ := s.Get(ctx, "sess-2"); got != "engine:level1" {
		t.Fatalf("Select should write through, got %q", got)
	}
}

func TestOpenFallsBackWhenRedisDown(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	p, err := s.Open(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected the redis error to be reported")
	}
	if p == nil || p.SelectedStrategy() != "random" {
		t.Fatalf("session should fall back to the default")
	}
}

func TestStatic(t *testing.T) {
	if Static("engine:level2").SelectedStrategy() != "engine:level2" {
		t.Fatalf("Static should return itself")
	}
}
