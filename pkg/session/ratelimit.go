package session

import (
	"time"

	"github.com/driftwood-mud/driftwood/pkg/events"
)

// rateWindow tracks a session's request count within the current window.
// Windows are created lazily on first input and reset in place when the
// reset time passes; stale windows are evicted by periodic maintenance.
type rateWindow struct {
	count int
	reset time.Time
}

// IsRateLimited applies the sliding-window-reset algorithm: the first
// RateLimitMax inputs inside a window are allowed, the next is rejected and
// announced on the bus. Unknown sessions are never rate limited.
func (m *Manager) IsRateLimited(id string) bool {
	m.mu.Lock()

	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	w, ok := m.rate[id]
	if !ok {
		m.rate[id] = &rateWindow{count: 1, reset: now.Add(m.cfg.RateLimitWindow)}
		m.mu.Unlock()
		return false
	}
	if now.After(w.reset) {
		w.count = 1
		w.reset = now.Add(m.cfg.RateLimitWindow)
		m.mu.Unlock()
		return false
	}

	w.count++
	count := w.count
	limited := count > m.cfg.RateLimitMax
	m.mu.Unlock()

	if limited {
		m.logger.Warn("session %s rate limited (%d requests in window)", id, count)
		m.bus.Emit(events.New(events.SessionRateLimited, id))
	}
	return limited
}

// evictStaleWindows drops windows whose reset time has passed. Called from
// the maintenance loop.
func (m *Manager) evictStaleWindows(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, w := range m.rate {
		if now.After(w.reset) {
			delete(m.rate, id)
			evicted++
		}
	}
	return evicted
}
