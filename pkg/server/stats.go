package server

import "time"

// Stats is a point-in-time snapshot of server state, served over the web
// API and useful for operators.
type Stats struct {
	Running        bool           `json:"running"`
	MudName        string         `json:"mud_name"`
	Version        string         `json:"version"`
	StartedAt      time.Time      `json:"started_at,omitempty"`
	UptimeSeconds  float64        `json:"uptime_seconds"`
	Host           string         `json:"host"`
	Port           int            `json:"port"`
	MaxConnections int            `json:"max_connections"`
	Sessions       map[string]int `json:"sessions"`
	Authenticated  int            `json:"authenticated"`
	Players        int            `json:"players"`
	Rooms          int            `json:"rooms"`
	Commands       []string       `json:"commands"`
}

// Stats returns a snapshot of the server's current state.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	running, started := s.running, s.startTime
	s.mu.Unlock()

	st := Stats{
		Running:        running,
		MudName:        s.cfg.MudName,
		Version:        versionString(),
		Host:           s.cfg.Host,
		Port:           s.cfg.Port,
		MaxConnections: s.cfg.MaxConnections,
		Sessions:       s.sessions.CountByState(),
		Authenticated:  s.sessions.AuthenticatedCount(),
		Players:        s.players.Count(),
		Rooms:          s.world.RoomCount(),
		Commands:       s.parser.Commands(),
	}
	if running {
		st.StartedAt = started
		st.UptimeSeconds = time.Since(started).Seconds()
	}
	return st
}
