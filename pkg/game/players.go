package game

import (
	"strings"
	"sync"
	"time"
)

// Players is an in-memory PlayerManager. Records live only as long as the
// backing session; persistent character storage is someone else's problem.
type Players struct {
	mu         sync.RWMutex
	bySession  map[string]*Player
	byUsername map[string]*Player
}

// NewPlayers creates an empty player tracker.
func NewPlayers() *Players {
	return &Players{
		bySession:  make(map[string]*Player),
		byUsername: make(map[string]*Player),
	}
}

// GetPlayerBySessionID implements PlayerManager.
func (p *Players) GetPlayerBySessionID(sessionID string) *Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bySession[sessionID]
}

// GetPlayerByUsername implements PlayerManager. Lookup is
// case-insensitive.
func (p *Players) GetPlayerByUsername(username string) *Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byUsername[strings.ToLower(username)]
}

// CreatePlayer implements PlayerManager.
func (p *Players) CreatePlayer(sessionID, username, roomID string) *Player {
	pl := &Player{
		SessionID: sessionID,
		Username:  username,
		RoomID:    roomID,
		CreatedAt: time.Now(),
	}
	p.AddPlayer(pl)
	return pl
}

// AddPlayer implements PlayerManager.
func (p *Players) AddPlayer(pl *Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bySession[pl.SessionID] = pl
	p.byUsername[strings.ToLower(pl.Username)] = pl
}

// RemovePlayerBySessionID implements PlayerManager.
func (p *Players) RemovePlayerBySessionID(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.bySession[sessionID]
	if !ok {
		return
	}
	delete(p.bySession, sessionID)
	key := strings.ToLower(pl.Username)
	if cur, ok := p.byUsername[key]; ok && cur.SessionID == sessionID {
		delete(p.byUsername, key)
	}
}

// Count returns the number of tracked players.
func (p *Players) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.bySession)
}

// SetRoom updates a player's room; no-op for unknown sessions.
func (p *Players) SetRoom(sessionID, roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pl, ok := p.bySession[sessionID]; ok {
		pl.RoomID = roomID
	}
}
