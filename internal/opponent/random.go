package opponent

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
)

const (
	KindRandom = "random"
	KindEngine = "engine"
	KindLLM    = "llm"
)

// Random plays a uniformly chosen candidate.
type Random struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rand: rand.New(rand.NewSource(seed))}
}

func (r *Random) SelectMove(ctx context.Context, req game.Request) game.Reply {
	if err := ctx.Err(); err != nil {
		return game.Reply{Err: err}
	}
	if len(req.Candidates) == 0 {
		return game.Reply{Err: ErrNoCandidates}
	}
	r.mu.Lock()
	i := r.rand.Intn(len(req.Candidates))
	r.mu.Unlock()
	return game.Reply{Move: req.Candidates[i]}
}
