package opponent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/engine"
	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/notation"
)

// Evaluator is the engine surface the supplier needs.
type Evaluator interface {
	Evaluate(ctx context.Context, req engine.EvaluateRequest) (engine.EvaluateResult, error)
}

// Renderer renders user-facing status lines by message key.
type Renderer interface {
	Render(key string, data any) (string, error)
}

const (
	MsgEngineStatus = "opponent.engine.status"
	MsgEngineResign = "opponent.engine.resign"
	MsgLLMInvalid   = "opponent.llm.invalid"
)

func render(r Renderer, key string, data map[string]any, fallback string) string {
	if r == nil {
		return fallback
	}
	s, err := r.Render(key, data)
	if err != nil || s == "" {
		return fallback
	}
	return s
}

// EngineSupplier asks a USI engine for the move of the side to play.
// The engine's choice must be among the request candidates; when it is
// not, the remaining engine candidates are tried in order.
type EngineSupplier struct {
	eval          Evaluator
	defaultPreset string
	texts         Renderer
	fallback      *Random
	logger        *zap.Logger
}

type EngineOption func(*EngineSupplier)

func WithEngineTexts(r Renderer) EngineOption {
	return func(s *EngineSupplier) { s.texts = r }
}

func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(s *EngineSupplier) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewEngineSupplier(eval Evaluator, defaultPreset string, opts ...EngineOption) *EngineSupplier {
	if defaultPreset == "" {
		defaultPreset = "level3"
	}
	s := &EngineSupplier{
		eval:          eval,
		defaultPreset: defaultPreset,
		fallback:      NewRandom(0),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EngineSupplier) SelectMove(ctx context.Context, req game.Request) game.Reply {
	if s.eval == nil {
		return game.Reply{Err: engine.ErrEngineUnavailable}
	}
	_, preset := ParseStrategy(req.Strategy)
	if preset == "" {
		preset = s.defaultPreset
	}

	sfen := notation.SFEN(req.Board, req.Captured, req.Player, len(req.Moves)+1)
	res, err := s.eval.Evaluate(ctx, engine.EvaluateRequest{PresetName: preset, SFEN: sfen})
	if errors.Is(err, engine.ErrResign) {
		// resignation is not a move here; play a random candidate instead
		reply := s.fallback.SelectMove(ctx, req)
		reply.Status = render(s.texts, MsgEngineResign, nil, "形勢不利です…")
		return reply
	}
	if err != nil {
		return game.Reply{Err: fmt.Errorf("engine %s: %w", preset, err)}
	}

	order := make([]engine.Candidate, 0, len(res.Candidates)+1)
	order = append(order, res.Chosen)
	order = append(order, res.Candidates...)
	for i, cand := range order {
		mv, ok := matchCandidate(cand.Move, req)
		if !ok {
			s.logger.Warn("engine_move_rejected",
				zap.String("move", cand.Move),
				zap.String("sfen", sfen),
			)
			continue
		}
		if i > 0 {
			s.logger.Info("engine_move_substituted", zap.String("chosen", res.Chosen.Move), zap.String("played", cand.Move))
		}
		status := render(s.texts, MsgEngineStatus, map[string]any{
			"Preset": res.Preset.Name,
			"Eval":   cand.EvalCP,
			"Move":   cand.Move,
		}, fmt.Sprintf("評価値 %+d", cand.EvalCP))
		return game.Reply{Move: mv, Status: status}
	}
	return game.Reply{Err: fmt.Errorf("%w: %s", ErrIllegalSuggestion, res.Chosen.Move)}
}

// matchCandidate resolves a USI move against the request, returning the
// candidate it denotes.
func matchCandidate(usiMove string, req game.Request) (shogi.MoveDescriptor, bool) {
	mv, err := notation.ParseUSI(usiMove, req.Board, req.Player)
	if err != nil {
		return nil, false
	}
	for _, c := range req.Candidates {
		if shogi.SameAction(c, mv) {
			return c, true
		}
	}
	return nil, false
}
