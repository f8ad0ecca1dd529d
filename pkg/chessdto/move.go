package chessdto

// MoveResult answers a move submission.
type MoveResult struct {
	Accepted   bool          `json:"accepted"`
	Terminal   bool          `json:"terminal"`
	Outcome    *Outcome      `json:"outcome,omitempty"`
	Dispatched bool          `json:"dispatched"`
	State      *SessionState `json:"state"`
}

// Event is one notification pushed over the websocket stream.
type Event struct {
	Kind        string   `json:"kind"`
	SessionID   string   `json:"sessionId"`
	Generation  uint64   `json:"generation"`
	Side        string   `json:"side,omitempty"`
	Label       string   `json:"label,omitempty"`
	SAN         string   `json:"san,omitempty"`
	FEN         string   `json:"fen,omitempty"`
	Ply         int      `json:"ply,omitempty"`
	RemainingMS *int64   `json:"remainingMs,omitempty"`
	Display     string   `json:"display,omitempty"`
	Outcome     *Outcome `json:"outcome,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Cursor      *int     `json:"cursor,omitempty"`
}

// FrameState is the kind of the first frame on a stream, carrying the full
// session state to sync from.
const FrameState = "state"

// StreamFrame is anything the stream sends: an Event, or a state sync when
// Kind is FrameState.
type StreamFrame struct {
	Event
	State *SessionState `json:"state,omitempty"`
}
