package shogidto

// Command types accepted over the websocket.
const (
	CmdNew      = "new"
	CmdClick    = "click"
	CmdCaptured = "captured"
	CmdPromote  = "promote"
	CmdUndo     = "undo"
	CmdReplay   = "replay"
	CmdRetry    = "retry"
	CmdStrategy = "strategy"
)

// Command is one client request. Only the fields of its Type are read.
type Command struct {
	Type     string `json:"type"`
	Mode     string `json:"mode,omitempty"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Player   string `json:"player,omitempty"`
	Index    int    `json:"index"`
	Accept   bool   `json:"accept,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}
