// Package record archives finished games in postgres.
package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
	"github.com/park285/Cheese-Shogi-bot/internal/shogi/notation"
)

var ErrDatabaseURLRequired = errors.New("record: DATABASE_URL is required")

const Schema = `CREATE TABLE IF NOT EXISTS shogi_games (
    game_id     TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    strategy    TEXT NOT NULL,
    result      TEXT NOT NULL,
    winner      TEXT NOT NULL,
    move_count  INTEGER NOT NULL,
    moves_usi   JSONB NOT NULL,
    kif         TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

// Finished is a game ready for archiving.
type Finished struct {
	ID        string
	Mode      string
	Strategy  string
	Moves     []shogi.MoveDescriptor
	Result    shogi.Result
	StartedAt time.Time
	EndedAt   time.Time
}

type row struct {
	result    string
	winner    string
	moveCount int
	movesUSI  string
	kif       string
	duration  int64
}

func buildRow(f Finished) row {
	usi := make([]string, len(f.Moves))
	for i, m := range f.Moves {
		usi[i] = notation.FormatUSI(m)
	}
	raw, _ := json.Marshal(usi)

	winner := ""
	if w, ok := f.Result.Winner(); ok {
		winner = string(w)
	}
	duration := f.EndedAt.Sub(f.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return row{
		result:    string(f.Result),
		winner:    winner,
		moveCount: len(f.Moves),
		movesUSI:  string(raw),
		kif:       BuildKIF(f),
		duration:  duration,
	}
}

// BuildKIF renders the archived record text.
func BuildKIF(f Finished) string {
	gote := "AI"
	switch {
	case f.Mode == "human":
		gote = "人間"
	case strings.TrimSpace(f.Strategy) != "":
		gote = "AI (" + strings.TrimSpace(f.Strategy) + ")"
	}
	sente := "人間"
	if f.Mode == "selfplay" {
		sente = gote
	}
	return notation.KIF(notation.KIFHeader{
		Event: "Cheese Shogi",
		Sente: sente,
		Gote:  gote,
		Start: f.StartedAt,
		End:   f.EndedAt,
	}, f.Moves, f.Result)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrDatabaseURLRequired
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// EnsureSchema creates the archive table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts f. A nil repository discards it.
func (r *Repository) SaveResult(ctx context.Context, f Finished) error {
	if r == nil || r.db == nil {
		return nil
	}
	rw := buildRow(f)

	const q = `INSERT INTO shogi_games (
        game_id, mode, strategy, result, winner, move_count,
        moves_usi, kif, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
      ) ON CONFLICT (game_id) DO UPDATE SET
        mode=EXCLUDED.mode,
        strategy=EXCLUDED.strategy,
        result=EXCLUDED.result,
        winner=EXCLUDED.winner,
        move_count=EXCLUDED.move_count,
        moves_usi=EXCLUDED.moves_usi,
        kif=EXCLUDED.kif,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		f.ID, f.Mode, strings.TrimSpace(f.Strategy),
		rw.result, rw.winner, rw.moveCount,
		rw.movesUSI, rw.kif,
		f.StartedAt, f.EndedAt, rw.duration,
	)
	return err
}
