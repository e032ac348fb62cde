package events

import "time"

// Event type names used across the server. The bus itself accepts any
// string, so plugins can define their own types without touching this list.
const (
	SessionConnected     = "session.connected"
	SessionAuthenticated = "session.authenticated"
	SessionDisconnected  = "session.disconnected"
	SessionIdleTimeout   = "session.idle_timeout"
	SessionRateLimited   = "session.rate_limited"
	SessionInput         = "session.input" // one raw line from a session
	CommandReceived      = "command.received"
	PlayerMove           = "player.move"
	ChatMessage          = "chat.message" // room-scoped
	ChatGlobal           = "chat.global"
)

// Event is the envelope that flows through the bus. It is immutable once
// constructed; handlers must not mutate Data in place.
type Event struct {
	Type      string
	Source    string // originating session ID, or "" for server-generated events
	Target    string // optional recipient session ID
	Data      map[string]any
	Timestamp time.Time
}

// New creates an event of the given type with the timestamp set to now.
func New(eventType, source string) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// WithTarget returns a copy of the event with the target set.
func (ev Event) WithTarget(target string) Event {
	ev.Target = target
	return ev
}

// WithData returns a copy of the event with the payload set.
func (ev Event) WithData(data map[string]any) Event {
	ev.Data = data
	return ev
}

// Str returns a value from Data as a string, or "" if absent.
func (ev Event) Str(key string) string {
	if ev.Data == nil {
		return ""
	}
	if s, ok := ev.Data[key].(string); ok {
		return s
	}
	return ""
}
