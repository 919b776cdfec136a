package source

// EventType classifies the session transitions reported to the Observer
// callback.
type EventType int

const (
	// EventOpenFailed means Open could not establish a session.
	EventOpenFailed EventType = iota
	// EventDisconnected means a read found the transport dead.
	EventDisconnected
	// EventReconnectAttempt carries the 1-based attempt number in
	// Event.Attempt.
	EventReconnectAttempt
	// EventReconnected means a reopen succeeded and the read resumed on
	// the fresh session.
	EventReconnected
	// EventReconnectExhausted means every reopen attempt failed; the
	// session is terminally closed.
	EventReconnectExhausted
	// EventNoData means a blocking read's wait budget elapsed with
	// nothing available; the transport was closed so the next read
	// reconnects.
	EventNoData
	// EventBadFrame means chunk framing was violated; the session is
	// terminally closed.
	EventBadFrame
	// EventBadArgument means a read was handed a nil buffer.
	EventBadArgument
)

// String implements fmt.Stringer. The values double as metric labels.
func (t EventType) String() string {
	switch t {
	case EventOpenFailed:
		return "open_failed"
	case EventDisconnected:
		return "disconnected"
	case EventReconnectAttempt:
		return "reconnect_attempt"
	case EventReconnected:
		return "reconnected"
	case EventReconnectExhausted:
		return "reconnect_exhausted"
	case EventNoData:
		return "no_data"
	case EventBadFrame:
		return "bad_frame"
	case EventBadArgument:
		return "bad_argument"
	}

	return "unknown"
}

// Event is one diagnostic notification. Events are advisory: control
// flow never depends on an observer seeing them.
type Event struct {
	Type EventType

	// Attempt is set for EventReconnectAttempt only.
	Attempt int
}
