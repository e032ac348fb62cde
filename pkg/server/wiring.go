package server

import (
	"fmt"

	"github.com/driftwood-mud/driftwood/pkg/events"
	"github.com/driftwood-mud/driftwood/pkg/session"
)

// wireEvents hooks the server's collaborators together on the event bus.
// The session manager emits raw input lines; everything downstream of that
// is subscription-driven.
func (s *Server) wireEvents() {
	// Input from authenticated sessions goes to the parser. Pre-login
	// input is consumed by the handshake goroutine's one-shot waiters.
	s.bus.On(events.SessionInput, func(ev events.Event) error {
		sess := s.sessions.Get(ev.Source)
		if sess == nil || !sess.Authenticated() || sess.State() != session.StateConnected {
			return nil
		}
		if resp := s.parser.Parse(ev.Source, ev.Str("text")); resp != "" {
			s.sessions.Send(ev.Source, resp, "response")
		}
		if m := s.metricsRef(); m != nil {
			m.CommandProcessed()
		}
		return nil
	})

	s.bus.On(events.PlayerMove, func(ev events.Event) error {
		s.handleMove(ev.Source, ev.Str("direction"))
		return nil
	})

	// say: deliver to everyone else in the speaker's room.
	s.bus.On(events.ChatMessage, func(ev events.Event) error {
		room := ev.Str("room")
		if room == "" {
			return nil
		}
		line := fmt.Sprintf("%s says, \"%s\"", ev.Str("username"), ev.Str("message"))
		s.announceToRoom(room, ev.Source, line)
		return nil
	})

	// chat: deliver to everyone online except the sender.
	s.bus.On(events.ChatGlobal, func(ev events.Event) error {
		line := fmt.Sprintf("[Chat] %s: %s", ev.Str("username"), ev.Str("message"))
		s.sessions.Broadcast(line, "chat", ev.Source)
		return nil
	})

	s.bus.On(events.SessionDisconnected, func(ev events.Event) error {
		s.cleanupPlayer(ev.Source)
		return nil
	})

	// Rate-limited sessions are warned by the session manager itself;
	// the event is left on the bus for observers only.
}

// handleMove resolves a movement event against the world and reports the
// outcome to the moving session.
func (s *Server) handleMove(sessionID, direction string) {
	pl := s.players.GetPlayerBySessionID(sessionID)
	if pl == nil {
		return
	}
	exit := s.world.FindExit(pl.RoomID, direction)
	if exit == nil {
		s.sessions.Send(sessionID, "You can't go that way.", "movement")
		return
	}
	from := pl.RoomID
	if !s.world.MovePlayer(sessionID, from, exit.ToRoomID) {
		s.sessions.Send(sessionID, "You can't go that way.", "movement")
		return
	}
	s.players.SetRoom(sessionID, exit.ToRoomID)

	s.announceToRoom(from, sessionID, fmt.Sprintf("%s leaves %s.", pl.Username, direction))
	s.announceToRoom(exit.ToRoomID, sessionID, fmt.Sprintf("%s arrives.", pl.Username))
	s.sessions.Send(sessionID, s.world.GetRoomDescription(exit.ToRoomID), "room")
}

// announceToRoom sends a line to every session in a room except one.
func (s *Server) announceToRoom(roomID, excludeID, line string) {
	for _, sid := range s.world.SessionsIn(roomID) {
		if sid == excludeID {
			continue
		}
		s.sessions.Send(sid, line, "room")
	}
}

// cleanupPlayer removes a departed session's player record and announces
// the departure to its last room.
func (s *Server) cleanupPlayer(sessionID string) {
	pl := s.players.GetPlayerBySessionID(sessionID)
	if pl == nil {
		s.world.RemoveSession(sessionID)
		return
	}
	room := pl.RoomID
	s.players.RemovePlayerBySessionID(sessionID)
	s.world.RemoveSession(sessionID)
	s.announceToRoom(room, sessionID, fmt.Sprintf("%s has left the game.", pl.Username))
}
