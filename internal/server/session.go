package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/gamestore"
	"github.com/park285/Cheese-Shogi-bot/internal/prefs"
	"github.com/park285/Cheese-Shogi-bot/internal/record"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/board"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/rules"
	"github.com/park285/Cheese-Shogi-bot/pkg/shogidto"
)

const outboxSize = 256

var errOutboxFull = errors.New("server: client is not reading")

type session struct {
	srv      *Server
	conn     *websocket.Conn
	clientID string
	logger   *zap.Logger
	loop     *game.Loop
	board    *board.Board
	prefs    *prefs.Session

	out    chan shogidto.Envelope
	cancel context.CancelCauseFunc

	// Owned by the loop goroutine.
	game     *game.Game
	gameID   string
	started  time.Time
	archived bool

	saveMu  sync.Mutex
	latest  *gamestore.Snapshot
	saveReq chan struct{}
}

func (s *Server) newSession(conn *websocket.Conn, clientID string) *session {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &session{
		srv:      s,
		conn:     conn,
		clientID: clientID,
		logger:   s.logger.With(zap.String("client", clientID)),
		loop:     game.NewLoop(64),
		out:      make(chan shogidto.Envelope, outboxSize),
		saveReq:  make(chan struct{}, 1),
	}
}

// serve runs the session until the client leaves or ctx ends.
func (ss *session) serve(parent context.Context, mode game.Mode) error {
	ctx, cancel := context.WithCancelCause(parent)
	ss.cancel = cancel
	defer cancel(nil)

	p, err := ss.srv.deps.Prefs.Open(ctx, ss.clientID)
	if err != nil {
		ss.logger.Warn("prefs_load_failed", zap.Error(err))
	}
	ss.prefs = p

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_ = ss.loop.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		ss.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		ss.saveLoop(ctx)
	}()
	defer func() {
		cancel(nil)
		wg.Wait()
		// The loop has stopped, so the game is no longer shared.
		if ss.game != nil {
			ss.game.Close()
		}
	}()

	var startErr error
	if err := ss.loop.Do(ctx, func() { startErr = ss.start(mode) }); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	err = ss.readLoop(ctx)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

func (ss *session) start(mode game.Mode) error {
	ss.board = board.New(board.WithDropValidator(rules.New()))
	ss.resetIdentity()
	g, err := game.New(game.Deps{
		Rules:     rules.New(),
		Board:     ss.board,
		Supplier:  ss.srv.deps.Supplier,
		Prefs:     ss.prefs,
		Scheduler: ss.loop,
	}, game.Options{
		Mode:          mode,
		OpponentDelay: ss.srv.cfg.OpponentDelay,
		Texts:         ss.srv.cfg.GameTexts,
		OnEvent:       ss.onEvent,
		Logger:        ss.logger,
	})
	if err != nil {
		return err
	}
	ss.game = g
	ss.persist()
	return nil
}

func (ss *session) resetIdentity() {
	ss.gameID = uuid.NewString()
	ss.started = time.Now()
	ss.archived = false
	ss.send("session", shogidto.SessionInfo{
		GameID:   ss.gameID,
		ClientID: ss.clientID,
		Strategy: ss.prefs.SelectedStrategy(),
	})
}

func (ss *session) readLoop(ctx context.Context) error {
	for {
		typ, raw, err := ss.conn.Read(ctx)
		if err != nil {
			return err
		}
		var cmd shogidto.Command
		if typ != websocket.MessageText || json.Unmarshal(raw, &cmd) != nil {
			ss.sendError(shogidto.CodeBadCommand, ss.srv.text("server.error.bad_command", map[string]any{"Type": "?"}, "unknown command"), false)
			continue
		}
		if err := ss.dispatch(ctx, cmd); err != nil {
			return err
		}
	}
}

// dispatch executes cmd. Only loop failures end the session.
func (ss *session) dispatch(ctx context.Context, cmd shogidto.Command) error {
	kind := strings.ToLower(strings.TrimSpace(cmd.Type))
	if kind == shogidto.CmdStrategy {
		ss.selectStrategy(ctx, cmd.Strategy)
		return nil
	}

	ok := true
	var run func()
	switch kind {
	case shogidto.CmdNew:
		mode := game.Mode(strings.ToLower(strings.TrimSpace(cmd.Mode)))
		if mode != "" && !mode.Valid() {
			ss.sendError(shogidto.CodeBadCommand, "unknown mode", false)
			return nil
		}
		run = func() {
			ss.resetIdentity()
			if mode != "" {
				_ = ss.game.SetMode(mode)
				return
			}
			ss.game.Initialize()
		}
	case shogidto.CmdClick:
		run = func() { ss.game.HandleCellClick(shogi.Pos(cmd.Row, cmd.Col)) }
	case shogidto.CmdCaptured:
		player := shogi.Player(strings.ToLower(strings.TrimSpace(cmd.Player)))
		if !player.Valid() {
			ss.sendError(shogidto.CodeBadCommand, "unknown player", false)
			return nil
		}
		run = func() { ss.game.HandleCapturedClick(player, cmd.Index) }
	case shogidto.CmdPromote:
		run = func() { ok = ss.game.ResolvePromotion(cmd.Accept) }
	case shogidto.CmdUndo:
		run = func() { ok = ss.game.Undo() }
	case shogidto.CmdReplay:
		run = func() { ok = ss.game.Replay(cmd.Index) }
	case shogidto.CmdRetry:
		run = func() { ok = ss.game.RetryOpponent() }
	default:
		ss.sendError(shogidto.CodeBadCommand,
			ss.srv.text("server.error.bad_command", map[string]any{"Type": cmd.Type}, "unknown command: "+cmd.Type), false)
		return nil
	}

	if err := ss.loop.Do(ctx, run); err != nil {
		return err
	}
	if !ok {
		ss.sendError(shogidto.CodeRejected, ss.srv.text("server.error.rejected", nil, "command rejected"), false)
	}
	return nil
}

func (ss *session) selectStrategy(ctx context.Context, id string) {
	sctx, cancel := context.WithTimeout(ctx, ss.srv.cfg.StoreTimeout)
	defer cancel()
	if err := ss.prefs.Select(sctx, id); err != nil {
		retry := !errors.Is(err, prefs.ErrInvalidStrategy)
		if retry {
			ss.logger.Warn("strategy_save_failed", zap.String("strategy", id), zap.Error(err))
		}
		ss.sendError(shogidto.CodeBadStrategy,
			ss.srv.text("server.error.bad_strategy", map[string]any{"Strategy": id}, "invalid strategy: "+id), retry)
		return
	}
	_ = ss.loop.Do(ctx, func() {
		ss.send("session", shogidto.SessionInfo{
			GameID:   ss.gameID,
			ClientID: ss.clientID,
			Strategy: ss.prefs.SelectedStrategy(),
		})
	})
}

// onEvent runs on the loop goroutine. ss.game is nil while game.New runs.
func (ss *session) onEvent(ev game.Event) {
	switch e := ev.(type) {
	case game.StateChanged:
		ss.send(e.EventName(), toState(e.State, ss.board.Grid(), ss.board.SnapshotCaptured()))
		ss.persist()
		if !e.State.Result.Terminal() {
			ss.archived = false
		} else if !ss.archived && ss.game != nil {
			ss.archived = true
			ss.archive()
		}
	case game.HistoryChanged:
		ss.send(e.EventName(), toHistory(e.Entries))
		ss.persist()
	case game.CapturedChanged:
		ss.send(e.EventName(), shogidto.Captured{
			Sente: toPieceNames(e.Captured.Sente),
			Gote:  toPieceNames(e.Captured.Gote),
		})
	case game.ThinkingChanged:
		ss.send(e.EventName(), shogidto.Thinking{Status: e.Status})
	case game.OpponentFailed:
		ss.send(e.EventName(), shogidto.DomainError{Code: shogidto.CodeOpponent, Message: e.Message, Retryable: true})
	case game.PromotionRequested:
		ss.send(e.EventName(), shogidto.Promotion{From: toSquare(e.From), To: toSquare(e.To)})
	case game.SelectionChanged:
		ss.send(e.EventName(), toSelection(e.Selection))
	}
}

func (ss *session) send(kind string, data any) {
	select {
	case ss.out <- shogidto.Envelope{Type: kind, Data: data}:
	default:
		ss.logger.Warn("ws_outbox_full", zap.String("type", kind))
		if ss.cancel != nil {
			ss.cancel(errOutboxFull)
		}
	}
}

func (ss *session) sendError(code, msg string, retryable bool) {
	ss.send("error", shogidto.DomainError{Code: code, Message: msg, Retryable: retryable})
}

func (ss *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-ss.out:
			wctx, cancel := context.WithTimeout(ctx, ss.srv.cfg.WriteTimeout)
			err := wsjson.Write(wctx, ss.conn, env)
			cancel()
			if err != nil {
				if !isClosed(err) {
					ss.logger.Warn("ws_write_failed", zap.String("type", env.Type), zap.Error(err))
				}
				ss.cancel(err)
				return
			}
		}
	}
}

// persist queues the current position for the snapshot store. Only the
// newest pending snapshot is written.
func (ss *session) persist() {
	if ss.game == nil || ss.srv.deps.Snapshots == nil {
		return
	}
	snap := gamestore.Capture(ss.gameID, ss.prefs.SelectedStrategy(), ss.game, ss.started)
	ss.saveMu.Lock()
	ss.latest = &snap
	ss.saveMu.Unlock()
	select {
	case ss.saveReq <- struct{}{}:
	default:
	}
}

func (ss *session) saveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ss.flush(context.Background())
			return
		case <-ss.saveReq:
			ss.flush(ctx)
		}
	}
}

func (ss *session) flush(parent context.Context) {
	ss.saveMu.Lock()
	snap := ss.latest
	ss.latest = nil
	ss.saveMu.Unlock()
	if snap == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, ss.srv.cfg.StoreTimeout)
	defer cancel()
	if err := ss.srv.deps.Snapshots.Save(ctx, *snap); err != nil {
		ss.logger.Warn("snapshot_save_failed", zap.String("game_id", snap.ID), zap.Error(err))
	}
}

// archive hands the finished game to the archiver off the loop.
func (ss *session) archive() {
	if ss.srv.deps.Archive == nil {
		return
	}
	f := record.Finished{
		ID:        ss.gameID,
		Mode:      string(ss.game.Mode()),
		Strategy:  ss.prefs.SelectedStrategy(),
		Moves:     ss.game.Moves(),
		Result:    ss.game.Result(),
		StartedAt: ss.started,
		EndedAt:   time.Now(),
	}
	logger := ss.logger
	timeout := ss.srv.cfg.StoreTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := ss.srv.deps.Archive.SaveResult(ctx, f); err != nil {
			logger.Error("game_archive_failed", zap.String("game_id", f.ID), zap.Error(err))
			return
		}
		logger.Info("game_archived", zap.String("game_id", f.ID), zap.String("result", string(f.Result)), zap.Int("moves", len(f.Moves)))
	}()
}
