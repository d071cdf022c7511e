// ABOUTME: Completion lifecycle states and the outward event type
// ABOUTME: Idle -> HistoryLoaded -> Streaming -> Committing -> Done, or Aborted/Failed

package completion

// State is the lifecycle position of one completion request.
type State int

const (
	StateIdle State = iota
	StateHistoryLoaded
	StateStreaming
	StateCommitting
	StateDone
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHistoryLoaded:
		return "history_loaded"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}

// Event is one outward frame. The last event of a successful completion has
// Done set and an empty Response.
type Event struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Emitter delivers an Event to the client. A non-nil error means the client
// is gone.
type Emitter func(Event) error
