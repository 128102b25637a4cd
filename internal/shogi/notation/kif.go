package notation

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/park285/Cheese-Shogi-bot/internal/shogi"
)

var kifNames = map[shogi.PieceType]string{
	shogi.Pawn:    "歩",
	shogi.Lance:   "香",
	shogi.Knight:  "桂",
	shogi.Silver:  "銀",
	shogi.Gold:    "金",
	shogi.Bishop:  "角",
	shogi.Rook:    "飛",
	shogi.King:    "玉",
	shogi.Tokin:   "と",
	shogi.NariKyo: "成香",
	shogi.NariKei: "成桂",
	shogi.NariGin: "成銀",
	shogi.Horse:   "馬",
	shogi.Dragon:  "龍",
}

var (
	zenkakuDigits = []rune("１２３４５６７８９")
	kanjiDigits   = []rune("一二三四五六七八九")
)

// PieceName returns the Japanese name used in game records.
func PieceName(t shogi.PieceType) string { return kifNames[t] }

// PlayerName returns 先手 or 後手.
func PlayerName(p shogi.Player) string {
	if p == shogi.Gote {
		return "後手"
	}
	return "先手"
}

// KIFHeader holds the record metadata.
type KIFHeader struct {
	Event string
	Sente string
	Gote  string
	Start time.Time
	End   time.Time
}

// KIFMove renders one move in KIF style. prev is the destination of the
// preceding move, used for the 同 shorthand.
func KIFMove(m shogi.MoveDescriptor, prev *shogi.Position) string {
	switch mv := m.(type) {
	case shogi.Move:
		var b strings.Builder
		if prev != nil && *prev == mv.To {
			b.WriteString("同　")
		} else {
			b.WriteString(kifSquare(mv.To))
		}
		b.WriteString(kifNames[mv.Piece])
		if mv.Promote {
			b.WriteString("成")
		}
		fmt.Fprintf(&b, "(%d%d)", shogi.Cols-mv.From.Col, mv.From.Row+1)
		return b.String()
	case shogi.Drop:
		return kifSquare(mv.To) + kifNames[mv.Piece] + "打"
	default:
		return ""
	}
}

func kifSquare(p shogi.Position) string {
	if !p.InBounds() {
		return "??"
	}
	return string(zenkakuDigits[shogi.Cols-1-p.Col]) + string(kanjiDigits[p.Row])
}

// KIF renders a complete game record as UTF-8 text.
func KIF(h KIFHeader, moves []shogi.MoveDescriptor, result shogi.Result) string {
	var b strings.Builder
	b.WriteString("# ---- Cheese Shogi 棋譜ファイル ----\n")
	if !h.Start.IsZero() {
		fmt.Fprintf(&b, "開始日時：%s\n", h.Start.Format("2006/01/02 15:04:05"))
	}
	if !h.End.IsZero() {
		fmt.Fprintf(&b, "終了日時：%s\n", h.End.Format("2006/01/02 15:04:05"))
	}
	if ev := strings.TrimSpace(h.Event); ev != "" {
		fmt.Fprintf(&b, "棋戦：%s\n", ev)
	}
	b.WriteString("手合割：平手\n")
	fmt.Fprintf(&b, "先手：%s\n", sanitizeKIF(h.Sente))
	fmt.Fprintf(&b, "後手：%s\n", sanitizeKIF(h.Gote))
	b.WriteString("手数----指手---------消費時間--\n")

	var prev *shogi.Position
	for i, m := range moves {
		fmt.Fprintf(&b, "%4d %s\n", i+1, KIFMove(m, prev))
		to := m.Dest()
		prev = &to
	}
	if w, ok := result.Winner(); ok {
		fmt.Fprintf(&b, "まで%d手で%sの勝ち\n", len(moves), PlayerName(w))
	} else {
		fmt.Fprintf(&b, "まで%d手で中断\n", len(moves))
	}
	return b.String()
}

// EncodeShiftJIS converts KIF text to the Shift_JIS bytes most viewers expect.
func EncodeShiftJIS(s string) ([]byte, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode shift_jis: %w", err)
	}
	return out, nil
}

// DecodeShiftJIS is the inverse of EncodeShiftJIS.
func DecodeShiftJIS(b []byte) (string, error) {
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", fmt.Errorf("decode shift_jis: %w", err)
	}
	return string(out), nil
}

func sanitizeKIF(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
