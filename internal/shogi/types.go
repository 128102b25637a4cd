package shogi

// Player identifies a side. Sente moves first.
type Player string

const (
	Sente Player = "sente"
	Gote  Player = "gote"
)

func (p Player) Opponent() Player {
	if p == Sente {
		return Gote
	}
	return Sente
}

func (p Player) Valid() bool { return p == Sente || p == Gote }

// PieceType is the kind of a piece. The zero value is an empty cell.
type PieceType string

const (
	Empty   PieceType = ""
	Pawn    PieceType = "FU"
	Lance   PieceType = "KYO"
	Knight  PieceType = "KEI"
	Silver  PieceType = "GIN"
	Gold    PieceType = "KIN"
	Bishop  PieceType = "KAKU"
	Rook    PieceType = "HISHA"
	King    PieceType = "GYOKU"
	Tokin   PieceType = "TO"
	NariKyo PieceType = "NARIKYO"
	NariKei PieceType = "NARIKEI"
	NariGin PieceType = "NARIGIN"
	Horse   PieceType = "UMA"
	Dragon  PieceType = "RYU"
)

// Royal is the piece whose capture ends the game.
const Royal = King

var promotions = map[PieceType]PieceType{
	Pawn:   Tokin,
	Lance:  NariKyo,
	Knight: NariKei,
	Silver: NariGin,
	Bishop: Horse,
	Rook:   Dragon,
}

var demotions = func() map[PieceType]PieceType {
	m := make(map[PieceType]PieceType, len(promotions))
	for base, promoted := range promotions {
		m[promoted] = base
	}
	return m
}()

// HandTypes lists the piece types that can be held in hand, strongest first.
var HandTypes = []PieceType{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

func (t PieceType) Promotable() bool {
	_, ok := promotions[t]
	return ok
}

func (t PieceType) IsPromoted() bool {
	_, ok := demotions[t]
	return ok
}

// Promoted returns the promoted form, or t itself when t cannot promote.
func (t PieceType) Promoted() PieceType {
	if p, ok := promotions[t]; ok {
		return p
	}
	return t
}

// Demoted returns the unpromoted form, or t itself.
func (t PieceType) Demoted() PieceType {
	if b, ok := demotions[t]; ok {
		return b
	}
	return t
}

func (t PieceType) Valid() bool {
	if t == King || t == Gold {
		return true
	}
	return t.Promotable() || t.IsPromoted()
}

// Piece is the content of a board cell.
type Piece struct {
	Type   PieceType `json:"type"`
	Player Player    `json:"player,omitempty"`
}

func (p Piece) IsEmpty() bool { return p.Type == Empty }

func (p Piece) BelongsTo(pl Player) bool { return p.Type != Empty && p.Player == pl }

// Result is the outcome of a game. The zero value means in progress.
type Result string

const (
	InProgress Result = ""
	SenteWin   Result = "sente_win"
	GoteWin    Result = "gote_win"
)

func WinFor(p Player) Result {
	if p == Sente {
		return SenteWin
	}
	return GoteWin
}

func (r Result) Terminal() bool { return r != InProgress }

// Winner reports the winning side of a terminal result.
func (r Result) Winner() (Player, bool) {
	switch r {
	case SenteWin:
		return Sente, true
	case GoteWin:
		return Gote, true
	default:
		return "", false
	}
}
