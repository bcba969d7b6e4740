package chat

import "github.com/ultronhq/ultron/internal/models"

// State is the orchestrator state of the displayed session
type State int

const (
	StateIdle State = iota
	StateLoading
	StateIdleWithHistory
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateIdleWithHistory:
		return "idle-with-history"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// EventKind identifies what changed
type EventKind int

const (
	// EventLogReplaced: the displayed log was reset or loaded from history
	EventLogReplaced EventKind = iota
	// EventMessageAppended: a message was appended to the displayed log
	EventMessageAppended
	// EventMessageUpdated: the last message received a fragment
	EventMessageUpdated
	// EventSessionsChanged: the session list was refreshed
	EventSessionsChanged
	// EventActiveChanged: a different session became active
	EventActiveChanged
	// EventStateChanged: state or loading flag changed
	EventStateChanged
	// EventError: a non-fatal failure the user may want to see
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLogReplaced:
		return "log-replaced"
	case EventMessageAppended:
		return "message-appended"
	case EventMessageUpdated:
		return "message-updated"
	case EventSessionsChanged:
		return "sessions-changed"
	case EventActiveChanged:
		return "active-changed"
	case EventStateChanged:
		return "state-changed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one ordered change notification. Role and LogLen describe the
// changed message for log events, as the scroll policy needs them.
type Event struct {
	Kind   EventKind
	Role   models.Role
	LogLen int
	State  State
	Err    error
}

// LogChange reports whether the event changed the displayed log
func (e Event) LogChange() bool {
	return e.Kind == EventLogReplaced || e.Kind == EventMessageAppended || e.Kind == EventMessageUpdated
}

// Snapshot is a consistent copy of everything the UI renders
type Snapshot struct {
	Sessions []models.Session
	ActiveID *int
	Messages []models.Message
	State    State
	Loading  bool
	// Typing is set while a reply is streaming but has no content yet
	Typing bool
	// Stale is set while the shown messages belong to the previously
	// displayed session, during a history load or after it failed
	Stale bool
}
