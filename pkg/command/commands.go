package command

import (
	"fmt"
	"strings"

	"github.com/driftwood-mud/driftwood/pkg/ansi"
	"github.com/driftwood-mud/driftwood/pkg/events"
	"github.com/driftwood-mud/driftwood/pkg/game"
	"github.com/driftwood-mud/driftwood/pkg/session"
)

// Version is reported by the version command.
const Version = "1.2.0"

var directions = []struct {
	name  string
	alias string
}{
	{"north", "n"},
	{"south", "s"},
	{"east", "e"},
	{"west", "w"},
	{"northeast", "ne"},
	{"northwest", "nw"},
	{"southeast", "se"},
	{"southwest", "sw"},
	{"up", "u"},
	{"down", "d"},
}

func (p *Parser) registerDefaults() {
	p.Register(Registration{
		Command:     "help",
		Aliases:     []string{"h", "?"},
		Description: "Show available commands, or help for one command",
		Usage:       "help [command]",
		Handler:     p.cmdHelp,
	})
	p.Register(Registration{
		Command:     "quit",
		Aliases:     []string{"exit", "logout"},
		Description: "Leave the game",
		Handler:     p.cmdQuit,
	})
	p.Register(Registration{
		Command:     "who",
		Description: "List players currently online",
		Handler:     p.cmdWho,
	})
	p.Register(Registration{
		Command:      "say",
		Description:  "Say something to everyone in the room ('<message> for short)",
		Usage:        "say <message>",
		Handler:      p.cmdSay,
		RequiresAuth: true,
	})
	p.Register(Registration{
		Command:      "look",
		Aliases:      []string{"l"},
		Description:  "Look at your surroundings",
		Handler:      p.cmdLook,
		RequiresAuth: true,
	})
	p.Register(Registration{
		Command:      "stats",
		Description:  "Show your character statistics",
		Handler:      p.cmdStats,
		RequiresAuth: true,
	})
	p.Register(Registration{
		Command:     "clear",
		Aliases:     []string{"cls"},
		Description: "Clear your screen",
		Handler:     p.cmdClear,
	})
	p.Register(Registration{
		Command:      "whisper",
		Aliases:      []string{"tell", "w"},
		Description:  "Send a private message to another player",
		Usage:        "whisper <player> <message>",
		Handler:      p.cmdWhisper,
		RequiresAuth: true,
	})
	p.Register(Registration{
		Command:      "chat",
		Description:  "Send a message to every player online",
		Usage:        "chat <message>",
		Handler:      p.cmdChat,
		RequiresAuth: true,
	})
	p.Register(Registration{
		Command:     "version",
		Description: "Show server version",
		Handler:     p.cmdVersion,
	})
	p.Register(Registration{
		Command:      "go",
		Aliases:      []string{"move"},
		Description:  "Move in a direction",
		Usage:        "go <direction>",
		Handler:      p.cmdGo,
		RequiresAuth: true,
		Movement:     true,
	})
	for _, d := range directions {
		dir := d.name
		p.Register(Registration{
			Command:      dir,
			Aliases:      []string{d.alias},
			Description:  "Move " + dir,
			RequiresAuth: true,
			Movement:     true,
			Handler: func(sessionID string, _ []string, _ string) (string, error) {
				p.emitMove(sessionID, dir)
				return "", nil
			},
		})
	}
	p.Register(Registration{
		Command:      "admin",
		Description:  "Administrative commands",
		Usage:        "admin <enable|create room|set description> ...",
		Handler:      p.cmdAdmin,
		RequiresAuth: true,
		AdminOnly:    true,
		Hidden:       true,
	})
}

func (p *Parser) cmdHelp(_ string, args []string, _ string) (string, error) {
	if len(args) == 0 {
		return p.AllHelp(), nil
	}
	if h := p.Help(args[0]); h != "" {
		return h, nil
	}
	return fmt.Sprintf("No help available for '%s'.", args[0]), nil
}

func (p *Parser) cmdQuit(sessionID string, _ []string, _ string) (string, error) {
	p.sessions.Disconnect(sessionID, "Quit")
	return "", nil
}

func (p *Parser) cmdWho(_ string, _ []string, _ string) (string, error) {
	var lines []string
	for _, s := range p.sessions.ByState(session.StateConnected) {
		if !s.Authenticated() || s.Username() == "" {
			continue
		}
		idle := "active"
		if m := int(s.IdleFor().Minutes()); m > 0 {
			idle = fmt.Sprintf("%dm idle", m)
		}
		lines = append(lines, fmt.Sprintf("  %s - %s", s.Username(), idle))
	}
	if len(lines) == 0 {
		return "No players are currently online.", nil
	}
	summary := fmt.Sprintf("%d players online", len(lines))
	if len(lines) == 1 {
		summary = "1 player online"
	}
	return "Players online:\r\n" + strings.Join(lines, "\r\n") + "\r\n\r\n" + summary, nil
}

func (p *Parser) cmdSay(sessionID string, args []string, _ string) (string, error) {
	if len(args) == 0 {
		return "Usage: say <message>", nil
	}
	msg := strings.Join(args, " ")
	name := "someone"
	if s := p.sessions.Get(sessionID); s != nil && s.Username() != "" {
		name = s.Username()
	}
	room := ""
	if p.players != nil {
		if pl := p.players.GetPlayerBySessionID(sessionID); pl != nil {
			room = pl.RoomID
		}
	}
	ev := events.New(events.ChatMessage, sessionID)
	ev.Data = map[string]any{"username": name, "message": msg, "room": room}
	p.bus.Emit(ev)
	return fmt.Sprintf("You say, \"%s\"", msg), nil
}

func (p *Parser) cmdLook(sessionID string, _ []string, _ string) (string, error) {
	if p.world == nil {
		return "The world is hazy and indistinct.", nil
	}
	roomID := p.world.GetStartingRoomID()
	if p.players != nil {
		if pl := p.players.GetPlayerBySessionID(sessionID); pl != nil {
			roomID = pl.RoomID
		}
	}
	if desc := p.world.GetRoomDescription(roomID); desc != "" {
		return desc, nil
	}
	return "You see nothing special.", nil
}

func (p *Parser) cmdStats(sessionID string, _ []string, _ string) (string, error) {
	name := "Adventurer"
	if s := p.sessions.Get(sessionID); s != nil && s.Username() != "" {
		name = s.Username()
	}
	return fmt.Sprintf("%s\r\n  Level: 1\r\n  Health: 100/100\r\n  Experience: 0", name), nil
}

func (p *Parser) cmdClear(_ string, _ []string, _ string) (string, error) {
	return ansi.ClearScreen, nil
}

func (p *Parser) cmdWhisper(sessionID string, args []string, _ string) (string, error) {
	if len(args) < 2 {
		return "Usage: whisper <player> <message>", nil
	}
	if p.world == nil || p.players == nil {
		return "Whisper is unavailable right now.", nil
	}
	sender := p.sessions.Get(sessionID)
	if sender == nil || !sender.Authenticated() || sender.State() != session.StateConnected {
		return "You must be logged in to whisper.", nil
	}
	target := args[0]
	msg := strings.Join(args[1:], " ")
	if strings.EqualFold(target, sender.Username()) {
		return "You can't whisper to yourself.", nil
	}
	pl := p.players.GetPlayerByUsername(target)
	if pl == nil {
		return fmt.Sprintf("There is no player named '%s'.", target), nil
	}
	ts := p.sessions.Get(pl.SessionID)
	if ts == nil || ts.State() != session.StateConnected || !ts.Authenticated() {
		return fmt.Sprintf("%s is not online.", pl.Username), nil
	}
	p.sessions.Send(ts.ID, fmt.Sprintf("%s whispers: %s", sender.Username(), msg), "whisper")
	return fmt.Sprintf("You whisper to %s: %s", pl.Username, msg), nil
}

func (p *Parser) cmdChat(sessionID string, args []string, _ string) (string, error) {
	if len(args) == 0 {
		return "Usage: chat <message>", nil
	}
	s := p.sessions.Get(sessionID)
	if p.players == nil || s == nil || !s.Authenticated() || p.players.GetPlayerBySessionID(sessionID) == nil {
		return "You must be logged in to chat.", nil
	}
	msg := strings.Join(args, " ")
	ev := events.New(events.ChatGlobal, sessionID)
	ev.Data = map[string]any{"username": s.Username(), "message": msg}
	p.bus.Emit(ev)
	return fmt.Sprintf("[Chat] %s: %s", s.Username(), msg), nil
}

func (p *Parser) cmdVersion(_ string, _ []string, _ string) (string, error) {
	return "Driftwood MUD server v" + Version, nil
}

func (p *Parser) cmdGo(sessionID string, args []string, _ string) (string, error) {
	if len(args) == 0 {
		return "Usage: go <direction>", nil
	}
	dir := strings.ToLower(args[0])
	for _, d := range directions {
		if dir == d.alias {
			dir = d.name
			break
		}
	}
	p.emitMove(sessionID, dir)
	return "", nil
}

func (p *Parser) emitMove(sessionID, direction string) {
	ev := events.New(events.PlayerMove, sessionID)
	ev.Data = map[string]any{"direction": direction}
	p.bus.Emit(ev)
}

func (p *Parser) cmdAdmin(sessionID string, args []string, _ string) (string, error) {
	if len(args) == 0 {
		return "Usage: admin <enable|create room|set description> ...", nil
	}
	s := p.sessions.Get(sessionID)
	if s == nil || !s.Authenticated() {
		return "You must be logged in.", nil
	}
	switch strings.ToLower(args[0]) {
	case "enable":
		if s.Role() != "admin" {
			return "You are not an administrator.", nil
		}
		p.mu.Lock()
		p.adminOn[sessionID] = true
		p.mu.Unlock()
		p.logger.Log("command: admin mode enabled for %s (%s)", s.Username(), sessionID)
		return "Admin commands enabled.", nil
	case "create":
		if !p.adminEnabled(sessionID) {
			return "Run 'admin enable' first.", nil
		}
		if len(args) < 4 || !strings.EqualFold(args[1], "room") {
			return "Usage: admin create room <id> <name>", nil
		}
		w, ok := p.world.(roomEditor)
		if !ok {
			return "This world cannot be edited.", nil
		}
		w.AddRoom(game.Room{ID: args[2], Name: strings.Join(args[3:], " ")})
		return fmt.Sprintf("Room '%s' created.", args[2]), nil
	case "set":
		if !p.adminEnabled(sessionID) {
			return "Run 'admin enable' first.", nil
		}
		if len(args) < 4 || !strings.EqualFold(args[1], "description") {
			return "Usage: admin set description <room> <text>", nil
		}
		w, ok := p.world.(roomEditor)
		if !ok {
			return "This world cannot be edited.", nil
		}
		if !w.SetRoomDescription(args[2], strings.Join(args[3:], " ")) {
			return fmt.Sprintf("No room with id '%s'.", args[2]), nil
		}
		return fmt.Sprintf("Description of '%s' updated.", args[2]), nil
	default:
		return "Usage: admin <enable|create room|set description> ...", nil
	}
}

// roomEditor is the optional world capability the admin command needs.
type roomEditor interface {
	AddRoom(r game.Room)
	SetRoomDescription(roomID, desc string) bool
}

func (p *Parser) adminEnabled(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.adminOn[sessionID]
}
