package chessdto

// Error codes returned by the HTTP API.
const (
	CodeIllegalMove     = "illegal_move"
	CodeNotYourTurn     = "not_your_turn"
	CodeOpponentPending = "opponent_pending"
	CodeGameOver        = "game_over"
	CodeClockExpired    = "clock_expired"
	CodeNothingToRetry  = "nothing_to_retry"
	CodeIndexOutOfRange = "index_out_of_range"
	CodeInvalidSettings = "invalid_settings"
	CodeInvalidRequest  = "invalid_request"
	CodeNotFound        = "not_found"
	CodeTooManySessions = "too_many_sessions"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
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
	return "chess service error"
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error DomainError `json:"error"`
}
