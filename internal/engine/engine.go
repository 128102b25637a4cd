// Package engine drives a USI shogi engine and softens its play per
// difficulty preset.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/engine/usi"
	"github.com/park285/Cheese-Shogi-bot/internal/obslog"
)

var (
	ErrUnknownPreset     = errors.New("engine: unknown preset")
	ErrNoCandidates      = errors.New("engine: no candidates to choose from")
	ErrEngineUnavailable = errors.New("engine: not configured")
	ErrResign            = errors.New("engine: resigned")
)

type Engine struct {
	pool   *usi.Pool
	randMu sync.Mutex
	rand   *rand.Rand
	logger *zap.Logger
}

func NewEngine(binaryPath string) (*Engine, error) {
	pool, err := usi.NewPool(usi.PoolConfig{BinaryPath: binaryPath})
	if err != nil {
		return nil, err
	}
	return NewEngineWithPool(pool), nil
}

func NewEngineWithPool(pool *usi.Pool) *Engine {
	return &Engine{
		pool:   pool,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: obslog.L(),
	}
}

type EvaluateRequest struct {
	PresetName string
	// SFEN is the start position; empty means the standard one.
	SFEN  string
	Moves []string
}

type EvaluateResult struct {
	Preset         DifficultyPreset
	Duration       time.Duration
	Candidates     []Candidate
	Chosen         Candidate
	EngineBestMove string
}

func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
	if e == nil || e.pool == nil {
		return EvaluateResult{}, ErrEngineUnavailable
	}
	preset, err := GetPreset(req.PresetName)
	if err != nil {
		return EvaluateResult{}, err
	}
	if err := ValidatePreset(preset); err != nil {
		return EvaluateResult{}, err
	}

	session, err := e.pool.Acquire(ctx, optionsFromPreset(preset))
	if err != nil {
		return EvaluateResult{}, err
	}
	var releaseErr error
	defer func() {
		e.pool.Release(session, releaseErr)
	}()

	if err := session.NewGame(ctx); err != nil {
		releaseErr = err
		return EvaluateResult{}, err
	}

	start := time.Now()
	resp, err := session.Search(ctx, usi.SearchRequest{
		SFEN:   req.SFEN,
		Moves:  req.Moves,
		Limits: limitsFromPreset(preset),
	})
	if err != nil {
		releaseErr = err
		return EvaluateResult{}, err
	}
	dur := time.Since(start)

	e.logger.Debug("usi_search",
		zap.String("preset", preset.Name),
		zap.Int("ply", len(req.Moves)),
		zap.String("bestmove", resp.BestMove),
		zap.Int("candidates", len(resp.Candidates)),
		zap.Duration("elapsed", dur),
	)

	if resp.BestMove == "resign" || resp.BestMove == "win" {
		return EvaluateResult{Preset: preset, Duration: dur, EngineBestMove: resp.BestMove}, ErrResign
	}

	candidates := convertCandidates(resp.Candidates)
	if len(candidates) == 0 && resp.BestMove != "" {
		candidates = []Candidate{{Move: resp.BestMove, Principal: []string{resp.BestMove}}}
	}
	if len(candidates) == 0 {
		return EvaluateResult{}, ErrNoCandidates
	}

	chosen, err := SelectCandidate(preset, candidates, e.random())
	if err != nil {
		return EvaluateResult{}, err
	}

	return EvaluateResult{
		Preset:         preset,
		Duration:       dur,
		Candidates:     candidates,
		Chosen:         chosen,
		EngineBestMove: resp.BestMove,
	}, nil
}

func convertCandidates(in []usi.Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if c.Move == "" {
			continue
		}
		out = append(out, Candidate{
			Move:      c.Move,
			EvalCP:    c.EvalCP,
			Mate:      c.Mate,
			Principal: append([]string(nil), c.Principal...),
		})
	}
	return out
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	seed := e.rand.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}

func (e *Engine) Close() error {
	if e == nil || e.pool == nil {
		return nil
	}
	return e.pool.Close()
}
