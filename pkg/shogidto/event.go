package shogidto

import "time"

// Envelope wraps every server message. Type is an event name or "error".
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Cell struct {
	Piece  string `json:"piece,omitempty"`
	Player string `json:"player,omitempty"`
}

type SessionInfo struct {
	GameID   string `json:"gameId"`
	ClientID string `json:"clientId"`
	Strategy string `json:"strategy"`
}

type State struct {
	Player    string     `json:"player"`
	Thinking  bool       `json:"thinking"`
	Mode      string     `json:"mode"`
	Result    string     `json:"result,omitempty"`
	Browsing  bool       `json:"browsing"`
	MoveIndex int        `json:"moveIndex"`
	ViewIndex int        `json:"viewIndex"`
	Board     [9][9]Cell `json:"board"`
	SFEN      string     `json:"sfen"`
}

type Move struct {
	Player  string  `json:"player"`
	USI     string  `json:"usi"`
	KIF     string  `json:"kif"`
	Piece   string  `json:"piece"`
	From    *Square `json:"from,omitempty"`
	To      Square  `json:"to"`
	Promote bool    `json:"promote,omitempty"`
	Drop    bool    `json:"drop,omitempty"`
}

type History struct {
	Moves []Move `json:"moves"`
}

type Captured struct {
	Sente []string `json:"sente"`
	Gote  []string `json:"gote"`
}

type Thinking struct {
	Status string `json:"status"`
}

type Promotion struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

type Selection struct {
	From      *Square    `json:"from,omitempty"`
	HandIndex *int       `json:"handIndex,omitempty"`
	HandPiece string     `json:"handPiece,omitempty"`
	Targets   []Square   `json:"targets,omitempty"`
	Promotion *Promotion `json:"promotion,omitempty"`
}

// Snapshot is the cached state of a live game served by GET /games/{id}.
type Snapshot struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Strategy  string    `json:"strategy"`
	Moves     []string  `json:"moves"`
	SFEN      string    `json:"sfen"`
	Turn      string    `json:"turn"`
	Result    string    `json:"result,omitempty"`
	MoveIndex int       `json:"moveIndex"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
