// Package opponent implements the move suppliers behind the automated
// side: a uniform random picker, a USI engine and an LLM, selected per
// request by strategy id.
package opponent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
)

var (
	ErrUnknownStrategy   = errors.New("opponent: unknown strategy")
	ErrNoCandidates      = errors.New("opponent: no legal candidates")
	ErrIllegalSuggestion = errors.New("opponent: suggested move is not legal")
)

// ParseStrategy splits "engine:level3" into its kind and argument.
func ParseStrategy(id string) (kind, arg string) {
	id = strings.TrimSpace(id)
	kind, arg, _ = strings.Cut(id, ":")
	return strings.ToLower(strings.TrimSpace(kind)), strings.TrimSpace(arg)
}

// Router dispatches each request to the supplier registered for the kind
// of its strategy id.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]game.MoveSupplier
	fallback string
	logger   *zap.Logger
}

type RouterOption func(*Router)

// WithFallback names the kind used when a request carries no strategy.
func WithFallback(kind string) RouterOption {
	return func(r *Router) { r.fallback = kind }
}

func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		routes:   make(map[string]game.MoveSupplier),
		fallback: KindRandom,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Register(kind string, s game.MoveSupplier) {
	r.mu.Lock()
	r.routes[strings.ToLower(kind)] = s
	r.mu.Unlock()
}

// Kinds lists the registered strategy kinds.
func (r *Router) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for k := range r.routes {
		out = append(out, k)
	}
	return out
}

// Supports reports whether a strategy id resolves to a registered kind.
func (r *Router) Supports(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

func (r *Router) lookup(id string) (game.MoveSupplier, bool) {
	kind, _ := ParseStrategy(id)
	if kind == "" {
		kind = r.fallback
	}
	r.mu.RLock()
	s, ok := r.routes[kind]
	r.mu.RUnlock()
	return s, ok
}

func (r *Router) SelectMove(ctx context.Context, req game.Request) game.Reply {
	s, ok := r.lookup(req.Strategy)
	if !ok {
		r.logger.Warn("opponent_unknown_strategy", zap.String("strategy", req.Strategy))
		return game.Reply{Err: fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)}
	}
	if len(req.Candidates) == 0 {
		return game.Reply{Err: ErrNoCandidates}
	}
	return s.SelectMove(ctx, req)
}
