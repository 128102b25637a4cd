package shogidto

const (
	CodeBadCommand  = "bad_command"
	CodeRejected    = "rejected"
	CodeBadStrategy = "bad_strategy"
	CodeNotFound    = "not_found"
	CodeOpponent    = "opponent_failed"
	CodeInternal    = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "shogi service error"
}
