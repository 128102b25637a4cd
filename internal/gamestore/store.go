// Package gamestore caches live game sessions in redis.
package gamestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Shogi-bot/internal/game"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/board"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/notation"
	"github.com/park285/Cheese-Shogi-bot/pkg/shogidto"
)

const DefaultTTL = 6 * time.Hour

// Snapshot is the cached view of one session.
type Snapshot = shogidto.Snapshot

// Capture reads the live position of g into a snapshot, ignoring any
// browsed entry on the board. It must run on g's goroutine.
func Capture(id, strategy string, g *game.Game, created time.Time) Snapshot {
	st := g.State()
	grid, hands, turn := shogi.InitialGrid(), shogi.CapturedSnapshot{}, shogi.Sente
	if st.MoveIndex >= 0 {
		e := g.History()[st.MoveIndex]
		grid, hands, turn = e.Board, e.Captured, e.Move.Mover().Opponent()
		if st.Result.Terminal() {
			turn = e.Move.Mover()
		}
	}
	played := g.Moves()
	moves := make([]string, len(played))
	for i, m := range played {
		moves[i] = notation.FormatUSI(m)
	}
	return Snapshot{
		ID:        id,
		Mode:      string(st.Mode),
		Strategy:  strategy,
		Moves:     moves,
		SFEN:      notation.SFEN(grid, hands, turn, len(moves)+1),
		Turn:      string(turn),
		Result:    string(st.Result),
		MoveIndex: st.MoveIndex,
		CreatedAt: created,
		UpdatedAt: time.Now(),
	}
}

// Moves decodes the cached USI moves by replaying them from the initial
// position.
func Moves(snap Snapshot) ([]shogi.MoveDescriptor, error) {
	b := board.New()
	player := shogi.Sente
	out := make([]shogi.MoveDescriptor, 0, len(snap.Moves))
	for i, raw := range snap.Moves {
		m, err := notation.ParseUSI(raw, b.Grid(), player)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		switch mv := m.(type) {
		case shogi.Move:
			b.MovePiece(mv.From, mv.To, mv.Promote)
		case shogi.Drop:
			if !b.DropPiece(mv.Piece, player, mv.To, true) {
				return nil, fmt.Errorf("move %d: %w: %s not in hand", i+1, notation.ErrBadUSI, raw)
			}
		}
		out = append(out, m)
		player = player.Opponent()
	}
	return out, nil
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) key(id string) string { return "shogi:game:" + strings.TrimSpace(id) }

func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(snap.ID), raw, s.ttl).Err()
}

// Load returns nil, nil when the session is unknown or expired.
func (s *Store) Load(ctx context.Context, id string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
