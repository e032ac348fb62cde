package session

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwood-mud/driftwood/pkg/events"
)

// Errors returned by Authenticate. Routine session access (Write,
// Disconnect) never returns errors: sessions can be removed asynchronously,
// so those operations are defined as safe no-ops instead.
var (
	ErrSessionNotFound      = errors.New("session: not found")
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")
	ErrSessionClosed        = errors.New("session: closed")
)

// Config is the session manager's construction surface.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnTimeout     time.Duration `yaml:"conn_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	Verbose         bool          `yaml:"verbose"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "",
		Port:            4000,
		MaxConnections:  100,
		ConnTimeout:     60 * time.Second,
		IdleTimeout:     10 * time.Minute,
		RateLimitWindow: 10 * time.Second,
		RateLimitMax:    20,
		Verbose:         false,
	}
}

// maintenanceInterval is how often stale rate windows are evicted and
// leaked-idle sessions reaped.
const maintenanceInterval = 60 * time.Second

// Manager owns the table of live sessions and is the only path by which
// bytes enter or leave one. All maps are confined behind mu; sessions carry
// their own lock for I/O.
type Manager struct {
	cfg    Config
	bus    *events.Bus
	logger Logger

	mu         sync.Mutex
	sessions   map[string]*Session
	rate       map[string]*rateWindow
	idleTimers map[string]*time.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager. A nil logger falls back to the
// standard log package.
func NewManager(cfg Config, bus *events.Bus, logger Logger) *Manager {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &Manager{
		cfg:        cfg,
		bus:        bus,
		logger:     logger,
		sessions:   make(map[string]*Session),
		rate:       make(map[string]*rateWindow),
		idleTimers: make(map[string]*time.Timer),
		stop:       make(chan struct{}),
	}
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// Bus returns the manager's event bus.
func (m *Manager) Bus() *events.Bus { return m.bus }

// Create allocates a new session for the connection, starts idle tracking
// and announces it on the bus. The session starts in StateAuthenticating.
func (m *Manager) Create(conn net.Conn) *Session {
	s := newSession(uuid.NewString(), conn)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.armIdleTimer(s.ID)
	m.mu.Unlock()

	m.logger.Log("session %s connected from %s:%d", s.ID, s.RemoteHost, s.RemotePort)
	ev := events.New(events.SessionConnected, s.ID)
	ev.Data = map[string]any{"host": s.RemoteHost, "port": s.RemotePort}
	m.bus.Emit(ev)
	return s
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// All returns a snapshot of every live session.
func (m *Manager) All() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// ByState returns the sessions currently in the given state.
func (m *Manager) ByState(st State) []*Session {
	var out []*Session
	for _, s := range m.All() {
		if s.State() == st {
			out = append(out, s)
		}
	}
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// UpdateActivity refreshes the session's last-activity time and rearms its
// idle timer. Called on every inbound byte; unknown IDs are a no-op.
func (m *Manager) UpdateActivity(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.armIdleTimer(id)
	m.mu.Unlock()
	s.touch()
}

// armIdleTimer (re)starts the single idle timer for a session. Must be
// called with m.mu held; the cancel-and-rearm under one lock guarantees at
// most one armed timer per session.
func (m *Manager) armIdleTimer(id string) {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	if t, ok := m.idleTimers[id]; ok {
		t.Stop()
		t.Reset(m.cfg.IdleTimeout)
		return
	}
	m.idleTimers[id] = time.AfterFunc(m.cfg.IdleTimeout, func() {
		m.onIdleTimeout(id)
	})
}

// onIdleTimeout fires when a session has produced no input for the
// configured idle timeout.
func (m *Manager) onIdleTimeout(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.logger.Log("session %s idle timeout", id)
	m.bus.Emit(events.New(events.SessionIdleTimeout, id))
	m.Disconnect(id, "Idle timeout")
}

// Authenticate marks a session as logged in and transitions it to
// StateConnected. Credential verification belongs to the caller's
// authenticator collaborator; this is state transition and announcement
// only. An empty role defaults to the lowest-privilege "player".
func (m *Manager) Authenticate(id, username, userID, role string) error {
	s := m.Get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if s.Authenticated() {
		return ErrAlreadyAuthenticated
	}
	if role == "" {
		role = "player"
	}
	s.authenticate(username, userID, role)

	m.logger.Log("session %s authenticated as %q (role %s)", id, username, role)
	ev := events.New(events.SessionAuthenticated, id)
	ev.Data = map[string]any{"username": username, "user_id": userID, "role": role}
	m.bus.Emit(ev)
	return nil
}

// Disconnect tears a session down: final message, transport close, removal
// from the table. Idempotent against unknown or already-removed sessions.
func (m *Manager) Disconnect(id, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	delete(m.rate, id)
	if t, ok := m.idleTimers[id]; ok {
		t.Stop()
		delete(m.idleTimers, id)
	}
	m.mu.Unlock()

	s.setState(StateDisconnecting)
	if reason != "" {
		s.Write("Disconnected: " + reason)
	}
	s.Close()
	s.setState(StateDisconnected)

	m.logger.Log("session %s disconnected: %s", id, reason)
	ev := events.New(events.SessionDisconnected, id)
	ev.Data = map[string]any{"reason": reason, "username": s.Username()}
	m.bus.Emit(ev)
}

// Send writes content plus a newline to the session if and only if it is in
// StateConnected. Returns false on any failure; it never panics or errors.
func (m *Manager) Send(id, content, messageType string) bool {
	s := m.Get(id)
	if s == nil {
		return false
	}
	if s.State() != StateConnected || s.IsClosed() {
		return false
	}
	if err := s.Write(content); err != nil {
		m.logger.Warn("send to %s failed: %v", id, err)
		return false
	}
	if m.cfg.Verbose {
		m.logger.Log("-> %s [%s] %d bytes", id, messageType, len(content))
	}
	return true
}

// Broadcast sends to every connected session except excludeID. Each send
// failure is independent and does not abort the broadcast.
func (m *Manager) Broadcast(content, messageType, excludeID string) {
	for _, s := range m.ByState(StateConnected) {
		if s.ID == excludeID {
			continue
		}
		m.Send(s.ID, content, messageType)
	}
}

// HandleInput processes one chunk of raw bytes from a session's transport:
// telnet filtering, activity update, rate limiting, then a SessionInput
// event carrying the line of text. Each chunk is treated as one line; input
// is not reassembled across reads.
func (m *Manager) HandleInput(id string, data []byte) {
	s := m.Get(id)
	if s == nil {
		return
	}
	m.UpdateActivity(id)

	text, sawCommand := s.filterInput(data)
	if sawCommand {
		// Protocol chatter; the negotiator already replied.
		return
	}
	line := strings.TrimRight(string(text), "\r\n")
	if line == "" {
		return
	}

	if m.IsRateLimited(id) {
		s.Write("You are sending commands too quickly. Slow down.")
		return
	}

	ev := events.New(events.SessionInput, id)
	ev.Data = map[string]any{"text": line}
	m.bus.Emit(ev)
}

// StartMaintenance launches the periodic cleanup loop: stale rate windows
// are evicted, and sessions idle past twice the idle timeout are
// force-disconnected as a safety net against timer leakage.
func (m *Manager) StartMaintenance() {
	go func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.maintain(time.Now())
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) maintain(now time.Time) {
	if n := m.evictStaleWindows(now); n > 0 && m.cfg.Verbose {
		m.logger.Log("maintenance: evicted %d stale rate windows", n)
	}
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	cutoff := 2 * m.cfg.IdleTimeout
	for _, s := range m.All() {
		if now.Sub(s.LastActivity()) > cutoff {
			m.logger.Warn("maintenance: reaping session %s idle %s", s.ID, now.Sub(s.LastActivity()))
			m.Disconnect(s.ID, "Idle timeout")
		}
	}
}

// Shutdown disconnects every session and stops the maintenance loop.
func (m *Manager) Shutdown(reason string) {
	m.stopOnce.Do(func() { close(m.stop) })
	for _, s := range m.All() {
		m.Disconnect(s.ID, reason)
	}
}

// CountByState returns per-state session counts for diagnostics.
func (m *Manager) CountByState() map[string]int {
	counts := make(map[string]int)
	for _, s := range m.All() {
		counts[s.State().String()]++
	}
	return counts
}

// AuthenticatedCount returns the number of logged-in sessions.
func (m *Manager) AuthenticatedCount() int {
	n := 0
	for _, s := range m.All() {
		if s.Authenticated() {
			n++
		}
	}
	return n
}
