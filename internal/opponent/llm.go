package opponent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/llmfast"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/notation"
)

// Completer is the chat-completions surface the supplier needs.
type Completer interface {
	Complete(ctx context.Context, req llmfast.ChatRequest) (llmfast.ChatResponse, error)
}

const systemPrompt = `あなたは将棋の対局者です。与えられた局面と合法手の一覧から一手を選び、
次のJSONだけを返してください: {"move": "<USI形式の指し手>", "thinking": "<日本語で短い読み筋>"}
指し手は必ず一覧の中から選んでください。`

// LLMSupplier asks a chat model to pick one of the candidates. The reply's
// thinking text becomes the status line.
type LLMSupplier struct {
	client       Completer
	defaultModel string
	temperature  float64
	texts        Renderer
	logger       *zap.Logger
}

type LLMOption func(*LLMSupplier)

func WithTemperature(t float64) LLMOption {
	return func(s *LLMSupplier) { s.temperature = t }
}

func WithLLMTexts(r Renderer) LLMOption {
	return func(s *LLMSupplier) { s.texts = r }
}

func WithLLMLogger(l *zap.Logger) LLMOption {
	return func(s *LLMSupplier) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewLLMSupplier(client Completer, defaultModel string, opts ...LLMOption) *LLMSupplier {
	s := &LLMSupplier{
		client:       client,
		defaultModel: defaultModel,
		temperature:  0.7,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type llmAnswer struct {
	Move     string `json:"move"`
	Thinking string `json:"thinking"`
}

func (s *LLMSupplier) SelectMove(ctx context.Context, req game.Request) game.Reply {
	_, model := ParseStrategy(req.Strategy)
	if model == "" {
		model = s.defaultModel
	}
	if model == "" {
		return game.Reply{Err: fmt.Errorf("%w: llm model not set", ErrUnknownStrategy)}
	}

	temp := s.temperature
	resp, err := s.client.Complete(ctx, llmfast.ChatRequest{
		Model: model,
		Messages: []llmfast.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		Temperature:    &temp,
		ResponseFormat: &llmfast.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return game.Reply{Err: fmt.Errorf("llm %s: %w", model, err)}
	}
	content, err := resp.Content()
	if err != nil {
		return game.Reply{Err: err}
	}

	ans, err := parseAnswer(content)
	if err != nil {
		s.logger.Warn("llm_reply_unparsable", zap.String("model", model), zap.String("content", content))
		return game.Reply{Err: fmt.Errorf("decode llm reply: %w", err)}
	}

	mv, ok := resolveAnswer(ans.Move, req)
	if !ok {
		s.logger.Warn("llm_move_rejected", zap.String("model", model), zap.String("move", ans.Move))
		msg := render(s.texts, MsgLLMInvalid, map[string]any{"Move": ans.Move},
			fmt.Sprintf("AIが不正な手 %q を返しました。", ans.Move))
		return game.Reply{
			Err:    fmt.Errorf("%w: %s", ErrIllegalSuggestion, ans.Move),
			Status: msg,
		}
	}
	return game.Reply{Move: mv, Status: strings.TrimSpace(ans.Thinking)}
}

// BuildPrompt describes the position and numbers the candidates in USI.
func BuildPrompt(req game.Request) string {
	var b strings.Builder
	side := "先手"
	if req.Player == shogi.Gote {
		side = "後手"
	}
	fmt.Fprintf(&b, "手番: %s\n", side)
	fmt.Fprintf(&b, "局面(SFEN): %s\n", notation.SFEN(req.Board, req.Captured, req.Player, len(req.Moves)+1))
	if len(req.Moves) > 0 {
		moves := make([]string, len(req.Moves))
		for i, m := range req.Moves {
			moves[i] = notation.FormatUSI(m)
		}
		fmt.Fprintf(&b, "これまでの指し手: %s\n", strings.Join(moves, " "))
	}
	b.WriteString("合法手:\n")
	for i, c := range req.Candidates {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(notation.FormatUSI(c))
		b.WriteByte('\n')
	}
	return b.String()
}

// parseAnswer tolerates markdown fences and prose around the JSON object.
func parseAnswer(content string) (llmAnswer, error) {
	content = strings.TrimSpace(content)
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return llmAnswer{}, fmt.Errorf("no json object in %q", truncate(content, 80))
	}
	var ans llmAnswer
	if err := json.Unmarshal([]byte(content[start:end+1]), &ans); err != nil {
		return llmAnswer{}, err
	}
	ans.Move = strings.TrimSpace(ans.Move)
	return ans, nil
}

// resolveAnswer accepts a USI move or a 1-based candidate number.
func resolveAnswer(move string, req game.Request) (shogi.MoveDescriptor, bool) {
	if n, err := strconv.Atoi(move); err == nil {
		if n >= 1 && n <= len(req.Candidates) {
			return req.Candidates[n-1], true
		}
		return nil, false
	}
	return matchCandidate(move, req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
