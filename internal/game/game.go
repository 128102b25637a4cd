// Package game orchestrates a shogi game: selection and promotion handling,
// turn alternation, move history with time travel, and the asynchronous
// opponent pipeline.
//
// A Game is owned by a single goroutine. Every exported method must be called
// from that goroutine; asynchronous completions re-enter it through the
// Scheduler.
package game

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

var (
	ErrMissingRules     = errors.New("game: rules oracle required")
	ErrMissingBoard     = errors.New("game: board holder required")
	ErrMissingSupplier  = errors.New("game: move supplier required")
	ErrMissingPrefs     = errors.New("game: preference source required")
	ErrMissingScheduler = errors.New("game: scheduler required")
	ErrUnknownMode      = errors.New("game: unknown mode")
)

const DefaultOpponentDelay = 500 * time.Millisecond

// Mode selects which sides are automated.
type Mode string

const (
	ModeHuman    Mode = "human"
	ModeLLM      Mode = "llm"
	ModeSelfPlay Mode = "selfplay"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeHuman, ModeLLM, ModeSelfPlay:
		return true
	}
	return false
}

// Automated reports whether p is played by the move supplier in mode m.
func (m Mode) Automated(p shogi.Player) bool {
	switch m {
	case ModeLLM:
		return p == shogi.Gote
	case ModeSelfPlay:
		return true
	default:
		return false
	}
}

// RulesOracle answers legality questions. Implementations must be pure.
type RulesOracle interface {
	IsLegalMove(b shogi.Grid, from, to shogi.Position, p shogi.Player) bool
	CanPromote(b shogi.Grid, from, to shogi.Position) bool
	MustPromote(t shogi.PieceType, to shogi.Position, p shogi.Player) bool
	CanDrop(b shogi.Grid, to shogi.Position, t shogi.PieceType, p shogi.Player) bool
}

// BoardHolder owns the grid and the hands.
type BoardHolder interface {
	Reset()
	Grid() shogi.Grid
	Hand(p shogi.Player) []shogi.PieceType
	MovePiece(from, to shogi.Position, promote bool) (shogi.Piece, bool)
	DropPiece(t shogi.PieceType, p shogi.Player, to shogi.Position, force bool) bool
	Snapshot() shogi.BoardSnapshot
	Restore(s shogi.BoardSnapshot)
	SnapshotCaptured() shogi.CapturedSnapshot
	RestoreCaptured(s shogi.CapturedSnapshot)
}

// PreferenceSource yields the opponent strategy. It is read once per
// opponent turn.
type PreferenceSource interface {
	SelectedStrategy() string
}

type Deps struct {
	Rules     RulesOracle
	Board     BoardHolder
	Supplier  MoveSupplier
	Prefs     PreferenceSource
	Scheduler Scheduler
}

// Texts are the user-facing strings the pipeline emits.
type Texts struct {
	Thinking     string
	MissingDrop  string
	EmptyReply   string
	ForeignPiece string
}

func DefaultTexts() Texts {
	return Texts{
		Thinking:     "思考中...",
		MissingDrop:  "内部エラー: 打つべき持ち駒が見つかりませんでした。",
		EmptyReply:   "内部エラー: AIが手を返しませんでした。",
		ForeignPiece: "内部エラー: AIの指し手が不正です。",
	}
}

type Options struct {
	Mode          Mode
	OpponentDelay time.Duration
	Texts         Texts
	OnEvent       func(Event)
	Logger        *zap.Logger
}

// State is the externally visible game status.
type State struct {
	Player    shogi.Player `json:"player"`
	Thinking  bool         `json:"thinking"`
	Mode      Mode         `json:"mode"`
	Result    shogi.Result `json:"result"`
	Browsing  bool         `json:"browsing"`
	MoveIndex int          `json:"moveIndex"`
	ViewIndex int          `json:"viewIndex"`
}

type Game struct {
	rules    RulesOracle
	board    BoardHolder
	supplier MoveSupplier
	prefs    PreferenceSource
	sched    Scheduler

	mode   Mode
	delay  time.Duration
	texts  Texts
	emit   func(Event)
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	turn   shogi.Player
	result shogi.Result
	sel    interaction
	hist   history

	pending *task
	// gen invalidates timers scheduled for an earlier position.
	gen    uint64
	closed bool
}

// New wires a game and starts it from the initial position.
func New(deps Deps, opts Options) (*Game, error) {
	switch {
	case deps.Rules == nil:
		return nil, ErrMissingRules
	case deps.Board == nil:
		return nil, ErrMissingBoard
	case deps.Supplier == nil:
		return nil, ErrMissingSupplier
	case deps.Prefs == nil:
		return nil, ErrMissingPrefs
	case deps.Scheduler == nil:
		return nil, ErrMissingScheduler
	}
	if opts.Mode == "" {
		opts.Mode = ModeLLM
	}
	if !opts.Mode.Valid() {
		return nil, ErrUnknownMode
	}
	if opts.OpponentDelay <= 0 {
		opts.OpponentDelay = DefaultOpponentDelay
	}
	opts.Texts = mergeTexts(opts.Texts)
	if opts.OnEvent == nil {
		opts.OnEvent = func(Event) {}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Game{
		rules:    deps.Rules,
		board:    deps.Board,
		supplier: deps.Supplier,
		prefs:    deps.Prefs,
		sched:    deps.Scheduler,
		mode:     opts.Mode,
		delay:    opts.OpponentDelay,
		texts:    opts.Texts,
		emit:     opts.OnEvent,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	g.Initialize()
	return g, nil
}

func mergeTexts(t Texts) Texts {
	def := DefaultTexts()
	if t.Thinking == "" {
		t.Thinking = def.Thinking
	}
	if t.MissingDrop == "" {
		t.MissingDrop = def.MissingDrop
	}
	if t.EmptyReply == "" {
		t.EmptyReply = def.EmptyReply
	}
	if t.ForeignPiece == "" {
		t.ForeignPiece = def.ForeignPiece
	}
	return t
}

// Initialize discards the current game and starts a new one.
func (g *Game) Initialize() {
	if g.closed {
		return
	}
	g.abandonPending()
	g.gen++
	g.board.Reset()
	g.turn = shogi.Sente
	g.result = shogi.InProgress
	g.sel = idle{}
	g.hist = newHistory()

	g.emitState()
	g.emitHistory()
	g.emitCaptured()
	g.emitSelection()
	g.scheduleOpponentIfDue()
}

// SetMode switches mode and starts a new game.
func (g *Game) SetMode(m Mode) error {
	if !m.Valid() {
		return ErrUnknownMode
	}
	g.mode = m
	g.Initialize()
	return nil
}

// Close cancels any outstanding opponent request. The game ignores all
// further input.
func (g *Game) Close() {
	if g.closed {
		return
	}
	g.abandonPending()
	g.closed = true
	g.cancel()
}

func (g *Game) State() State {
	return State{
		Player:    g.turn,
		Thinking:  g.thinking(),
		Mode:      g.mode,
		Result:    g.result,
		Browsing:  g.hist.browsing,
		MoveIndex: g.hist.cursor,
		ViewIndex: g.hist.view,
	}
}

func (g *Game) Mode() Mode           { return g.mode }
func (g *Game) Turn() shogi.Player   { return g.turn }
func (g *Game) Result() shogi.Result { return g.result }
func (g *Game) Grid() shogi.Grid     { return g.board.Grid() }

func (g *Game) Captured() shogi.CapturedSnapshot {
	return g.board.SnapshotCaptured()
}
