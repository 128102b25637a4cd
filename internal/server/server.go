// Package server exposes shogi games over a websocket.
//
// Each connection owns one game driven by its own game.Loop. Client
// commands are executed on that loop and every game event is forwarded to
// the client as a JSON envelope. Live games are cached in redis after every
// history change and finished games are archived.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/gamestore"
	"github.com/park285/Cheese-Shogi-bot/internal/prefs"
	"github.com/park285/Cheese-Shogi-bot/internal/record"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/notation"
	"github.com/park285/Cheese-Shogi-bot/pkg/shogidto"
)

var ErrMissingPrefs = errors.New("server: prefs store required")

// SnapshotStore caches live games.
type SnapshotStore interface {
	Save(ctx context.Context, snap gamestore.Snapshot) error
	Load(ctx context.Context, id string) (*gamestore.Snapshot, error)
}

// Archiver stores finished games.
type Archiver interface {
	SaveResult(ctx context.Context, f record.Finished) error
}

type Renderer interface {
	Render(key string, data any) (string, error)
}

type Deps struct {
	Supplier  game.MoveSupplier
	Prefs     *prefs.Store
	Snapshots SnapshotStore
	Archive   Archiver
	Texts     Renderer
	// Health reports backend readiness for /healthz.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

type Config struct {
	DefaultMode   game.Mode
	OpponentDelay time.Duration
	GameTexts     game.Texts
	WriteTimeout  time.Duration
	StoreTimeout  time.Duration
}

type Server struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

func New(deps Deps, cfg Config) (*Server, error) {
	if deps.Supplier == nil {
		return nil, game.ErrMissingSupplier
	}
	if deps.Prefs == nil {
		return nil, ErrMissingPrefs
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = game.ModeLLM
	}
	if !cfg.DefaultMode.Valid() {
		return nil, game.ErrUnknownMode
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	return &Server{deps: deps, cfg: cfg, logger: deps.Logger}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /games/{id}", s.handleGame)
	mux.HandleFunc("GET /games/{id}/kif", s.handleKIF)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			s.logger.Warn("health_check_failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, shogidto.DomainError{Code: shogidto.CodeInternal, Message: err.Error(), Retryable: true})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleKIF serves the cached game as a KIF record. charset=sjis selects
// Shift_JIS output.
func (s *Server) handleKIF(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	moves, err := gamestore.Moves(*snap)
	if err != nil {
		s.logger.Error("snapshot_decode_failed", zap.String("game_id", snap.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, shogidto.DomainError{Code: shogidto.CodeInternal, Message: "snapshot unreadable"})
		return
	}
	text := record.BuildKIF(record.Finished{
		ID:        snap.ID,
		Mode:      snap.Mode,
		Strategy:  snap.Strategy,
		Moves:     moves,
		Result:    shogi.Result(snap.Result),
		StartedAt: snap.CreatedAt,
		EndedAt:   snap.UpdatedAt,
	})

	body, charset := []byte(text), "utf-8"
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("charset"))) {
	case "sjis", "shift_jis", "shift-jis":
		if body, err = notation.EncodeShiftJIS(text); err != nil {
			s.logger.Error("kif_encode_failed", zap.String("game_id", snap.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, shogidto.DomainError{Code: shogidto.CodeInternal, Message: "encode failed"})
			return
		}
		charset = "Shift_JIS"
	}
	w.Header().Set("Content-Type", "text/plain; charset="+charset)
	w.Header().Set("Content-Disposition", `attachment; filename="`+snap.ID+`.kif"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (*gamestore.Snapshot, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if s.deps.Snapshots == nil || id == "" {
		writeJSON(w, http.StatusNotFound, shogidto.DomainError{Code: shogidto.CodeNotFound, Message: "game not found"})
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StoreTimeout)
	defer cancel()
	snap, err := s.deps.Snapshots.Load(ctx, id)
	if err != nil {
		s.logger.Error("snapshot_load_failed", zap.String("game_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, shogidto.DomainError{Code: shogidto.CodeInternal, Message: "snapshot unavailable", Retryable: true})
		return nil, false
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, shogidto.DomainError{Code: shogidto.CodeNotFound, Message: "game not found"})
		return nil, false
	}
	return snap, true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := s.cfg.DefaultMode
	if v := strings.ToLower(strings.TrimSpace(q.Get("mode"))); v != "" {
		mode = game.Mode(v)
	}
	if !mode.Valid() {
		writeJSON(w, http.StatusBadRequest, shogidto.DomainError{Code: shogidto.CodeBadCommand, Message: "unknown mode"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sess := s.newSession(conn, strings.TrimSpace(q.Get("client")))
	if err := sess.serve(r.Context(), mode); err != nil && !isClosed(err) {
		sess.logger.Warn("ws_session_ended", zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "session failed")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) text(key string, data any, fallback string) string {
	if s.deps.Texts == nil {
		return fallback
	}
	out, err := s.deps.Texts.Render(key, data)
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isClosed(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
