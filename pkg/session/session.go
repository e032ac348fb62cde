package session

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/driftwood-mud/driftwood/pkg/telnet"
)

// State tracks where a connection is in its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateConnected
	StateDisconnecting
	StateDisconnected // terminal; a session never leaves this state
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// writeTimeout bounds a single Send so one stuck client cannot block the
// caller indefinitely.
const writeTimeout = 5 * time.Second

// Session is the server-side record of one live client connection. It owns
// the underlying net.Conn and closes it on teardown. All mutable fields are
// guarded by mu because timers and broadcasts touch sessions from other
// goroutines than the connection's read loop.
type Session struct {
	ID          string // opaque UUID, immutable
	RemoteHost  string
	RemotePort  int
	ConnectedAt time.Time

	conn net.Conn
	neg  *telnet.Negotiator

	mu            sync.Mutex
	state         State
	authenticated bool
	username      string
	userID        string
	role          string
	lastActivity  time.Time
	termType      string
	termWidth     int
	termHeight    int
	bytesSent     int
	bytesRecv     int
	closed        bool
}

// newSession wraps a net.Conn. Sessions start in StateAuthenticating: the
// login handshake begins as soon as the transport connects.
func newSession(id string, conn net.Conn) *Session {
	now := time.Now()
	s := &Session{
		ID:           id,
		ConnectedAt:  now,
		conn:         conn,
		state:        StateAuthenticating,
		lastActivity: now,
	}
	if addr := conn.RemoteAddr(); addr != nil {
		host, portStr, err := net.SplitHostPort(addr.String())
		if err == nil {
			s.RemoteHost = host
			s.RemotePort, _ = strconv.Atoi(portStr)
		} else {
			s.RemoteHost = addr.String()
		}
	}
	s.neg = telnet.NewNegotiator(conn)
	s.neg.OnResize = func(w, h int) {
		s.mu.Lock()
		s.termWidth, s.termHeight = w, h
		s.mu.Unlock()
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Authenticated reports whether the session has completed login.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Username returns the username set at authentication, or "".
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// UserID returns the user ID set at authentication, or "".
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Role returns the role set at authentication, or "".
func (s *Session) Role() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// LastActivity returns the time of the last inbound data.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// authenticate marks the session authenticated. Invariant: authenticated
// implies StateConnected and a non-empty username.
func (s *Session) authenticate(username, userID, role string) {
	s.mu.Lock()
	s.authenticated = true
	s.username = username
	s.userID = userID
	s.role = role
	s.state = StateConnected
	s.mu.Unlock()
}

// Terminal returns the negotiated terminal metadata. Zero values mean the
// client never reported them.
func (s *Session) Terminal() (termType string, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termType, s.termWidth, s.termHeight
}

// BytesSent returns the total bytes written to this connection.
func (s *Session) BytesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}

// BytesRecv returns the total bytes received from this connection.
func (s *Session) BytesRecv() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesRecv
}

// Write sends a string to the peer, ensuring a trailing \r\n for telnet.
// A write error is returned to the caller; teardown of the session is
// still the read loop's job, not the sender's.
func (s *Session) Write(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\r\n"
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	n, err := s.conn.Write([]byte(msg))
	s.bytesSent += n
	return err
}

// WriteRaw sends bytes without any framing (prompts, telnet sequences).
func (s *Session) WriteRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	n, err := s.conn.Write(data)
	s.bytesSent += n
	return err
}

// Close shuts the transport down. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.conn.Close()
	}
}

// IsClosed reports whether the transport has been closed.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// filterInput runs inbound bytes through the telnet negotiator and updates
// the receive counter.
func (s *Session) filterInput(data []byte) (text []byte, sawCommand bool) {
	s.mu.Lock()
	s.bytesRecv += len(data)
	s.mu.Unlock()
	return s.neg.Filter(data)
}

// IdleFor returns how long the session has been idle.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastActivity())
}
