package server

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/driftwood-mud/driftwood/pkg/events"
	"github.com/driftwood-mud/driftwood/pkg/session"
	"github.com/driftwood-mud/driftwood/pkg/store"
)

// runLogin drives the username/password handshake for one session. It waits
// for the session's own input lines on the event bus, so it must run in a
// goroutine separate from the connection read loop.
func (s *Server) runLogin(sess *session.Session) {
	for attempt := 0; attempt < s.cfg.LoginRetries; attempt++ {
		username, ok := s.promptLine(sess, "Username: ")
		if !ok {
			return
		}
		if err := session.ValidateUsername(username); err != nil {
			sess.Write(err.Error())
			continue
		}
		if s.players.GetPlayerByUsername(username) != nil {
			sess.Write("That name is already connected.")
			continue
		}

		password, ok := s.promptLine(sess, "Password: ")
		if !ok {
			return
		}

		acct, err := s.verify(username, password)
		if err != nil {
			sess.Write("Invalid username or password.")
			log.Printf("session %s: failed login as %q", sess.ID, username)
			continue
		}

		s.completeLogin(sess, acct)
		return
	}
	s.sessions.Disconnect(sess.ID, "Too many failed login attempts")
}

// promptLine writes a prompt without a trailing newline and waits for the
// session's next input line. Returns false when the session timed out or
// went away; the session is disconnected before returning.
func (s *Server) promptLine(sess *session.Session, prompt string) (string, bool) {
	sess.WriteRaw([]byte(prompt))
	ev, err := s.bus.WaitFor(events.SessionInput, func(ev events.Event) bool {
		return ev.Source == sess.ID
	}, s.cfg.ConnTimeout)
	if err != nil {
		if errors.Is(err, events.ErrWaitTimeout) {
			s.sessions.Disconnect(sess.ID, "Login timeout")
		}
		return "", false
	}
	if s.sessions.Get(sess.ID) == nil {
		return "", false
	}
	return strings.TrimSpace(ev.Str("text")), true
}

// verify checks credentials against the account store. Without a store,
// any password is accepted and a transient account is minted. Unknown
// usernames register a new account on first login.
func (s *Server) verify(username, password string) (*store.Account, error) {
	if s.accounts == nil {
		return &store.Account{Username: username, Role: "player"}, nil
	}
	acct, err := s.accounts.Authenticate(username, password)
	if err == nil {
		return acct, nil
	}
	if errors.Is(err, store.ErrBadCredentials) {
		if _, lookupErr := s.accounts.Get(username); errors.Is(lookupErr, store.ErrAccountNotFound) {
			return s.accounts.Create(username, password, "")
		}
	}
	return nil, err
}

func (s *Server) completeLogin(sess *session.Session, acct *store.Account) {
	if err := s.sessions.Authenticate(sess.ID, acct.Username, uuid.NewString(), acct.Role); err != nil {
		log.Printf("session %s: authenticate: %v", sess.ID, err)
		s.sessions.Disconnect(sess.ID, "Login failed")
		return
	}

	start := s.world.GetStartingRoomID()
	s.players.CreatePlayer(sess.ID, acct.Username, start)
	s.world.PlaceSession(sess.ID, start)

	if motd := s.textOr(s.texts.GetMotd, ""); motd != "" {
		sess.Write(motd)
	}
	s.sessions.Send(sess.ID, fmt.Sprintf("Welcome, %s!", acct.Username), "system")
	s.sessions.Send(sess.ID, s.world.GetRoomDescription(start), "room")
	s.announceToRoom(start, sess.ID, fmt.Sprintf("%s has entered the game.", acct.Username))
}
