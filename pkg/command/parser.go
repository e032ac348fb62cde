// Package command turns freeform session input into structured command
// dispatch and owns the registry of available commands.
package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/driftwood-mud/driftwood/pkg/events"
	"github.com/driftwood-mud/driftwood/pkg/game"
	"github.com/driftwood-mud/driftwood/pkg/session"
)

// HandlerFunc implements one user-facing verb. It returns the response to
// send back to the session; "" means no response. Returned errors (and
// panics) are caught at the parser boundary and converted to a generic
// user-facing message, so handlers may also just return descriptive
// strings for expected failures.
type HandlerFunc func(sessionID string, args []string, raw string) (string, error)

// Registration describes one command and its aliases. RequiresAuth and
// AdminOnly are declared here for surrounding authorization layers; the
// parser itself does not enforce them. Hidden and Movement commands stay
// invokable but are excluded from listings and help.
type Registration struct {
	Command      string
	Aliases      []string
	Description  string
	Usage        string
	Handler      HandlerFunc
	RequiresAuth bool
	AdminOnly    bool
	Hidden       bool
	Movement     bool
}

const errGeneric = "An error occurred while processing your command."

// Parser tokenizes input lines, routes them to registered handlers, and
// announces every received command on the event bus.
type Parser struct {
	bus      *events.Bus
	sessions *session.Manager
	world    game.WorldManager
	players  game.PlayerManager
	logger   session.Logger

	mu       sync.Mutex
	registry map[string]*Registration // lower-cased name or alias -> record
	adminOn  map[string]bool          // sessions that ran "admin enable"
}

// NewParser creates a parser with the default command set registered. The
// world and player managers may be nil; commands that need them fail
// gracefully with a descriptive message.
func NewParser(bus *events.Bus, sessions *session.Manager, world game.WorldManager, players game.PlayerManager, logger session.Logger) *Parser {
	if logger == nil {
		logger = session.DefaultLogger()
	}
	p := &Parser{
		bus:      bus,
		sessions: sessions,
		world:    world,
		players:  players,
		logger:   logger,
		registry: make(map[string]*Registration),
		adminOn:  make(map[string]bool),
	}
	p.registerDefaults()
	return p
}

// Tokenize splits an input line into tokens. Double or single quotes open
// a span in which spaces are literal; outside quotes, runs of spaces
// separate tokens and never produce empty ones. An unterminated quote is
// tolerated: its content is flushed as the final token.
func Tokenize(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	var tokens []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && c == ' ':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// Register stores the handler under the lower-cased canonical name and
// each lower-cased alias. Re-registering a key overwrites that key only:
// aliases bound to a different record are untouched unless re-declared.
func (p *Parser) Register(reg Registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := reg
	p.registry[strings.ToLower(rec.Command)] = &rec
	for _, alias := range rec.Aliases {
		p.registry[strings.ToLower(alias)] = &rec
	}
	p.logger.Log("command: registered %q (aliases: %s)", rec.Command, strings.Join(rec.Aliases, ", "))
}

// Unregister removes a command's canonical name and all of that record's
// aliases atomically. Returns false if the name is not registered.
func (p *Parser) Unregister(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.registry[strings.ToLower(name)]
	if !ok {
		return false
	}
	delete(p.registry, strings.ToLower(rec.Command))
	for _, alias := range rec.Aliases {
		delete(p.registry, strings.ToLower(alias))
	}
	p.logger.Log("command: unregistered %q", rec.Command)
	return true
}

// Lookup returns the registration for a name or alias, or nil.
func (p *Parser) Lookup(name string) *Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry[strings.ToLower(name)]
}

// Parse tokenizes one line of input and dispatches it. Empty input yields
// "" with no side effects. A command-received event is emitted before
// dispatch, even for commands that turn out to be unknown. Handler errors
// and panics never propagate: they are logged with the session ID and the
// original input, and the caller gets a generic error string.
func (p *Parser) Parse(sessionID, rawInput string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("command: panic from session %s input %q: %v", sessionID, rawInput, r)
			result = errGeneric
		}
	}()

	input := strings.TrimSpace(rawInput)
	// Leading apostrophe is the traditional say shorthand. It has to be
	// rewritten before tokenizing, which would eat it as a quote opener.
	if strings.HasPrefix(input, "'") && len(input) > 1 {
		input = "say " + input[1:]
	}
	tokens := Tokenize(input)
	if len(tokens) == 0 {
		return ""
	}
	name := strings.ToLower(tokens[0])
	args := tokens[1:]

	ev := events.New(events.CommandReceived, sessionID)
	ev.Data = map[string]any{"command": name, "args": args, "raw": rawInput}
	p.bus.Emit(ev)

	rec := p.Lookup(name)
	if rec == nil {
		return fmt.Sprintf("Unknown command: %s. Type 'help' for a list of commands.", tokens[0])
	}

	resp, err := rec.Handler(sessionID, args, rawInput)
	if err != nil {
		p.logger.Error("command: %q from session %s input %q failed: %v", rec.Command, sessionID, rawInput, err)
		return errGeneric
	}
	return resp
}

// Commands returns the canonical names of listed commands: deduplicated
// across aliases, excluding hidden and movement commands, sorted.
func (p *Parser) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, rec := range p.registry {
		if rec.Hidden || rec.Movement || seen[rec.Command] {
			continue
		}
		seen[rec.Command] = true
		names = append(names, rec.Command)
	}
	sort.Strings(names)
	return names
}

// Help returns a formatted help block for one command, or "" if unknown.
func (p *Parser) Help(name string) string {
	rec := p.Lookup(name)
	if rec == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", rec.Command, rec.Description)
	if rec.Usage != "" {
		fmt.Fprintf(&b, "\r\nUsage: %s", rec.Usage)
	}
	if len(rec.Aliases) > 0 {
		fmt.Fprintf(&b, "\r\nAliases: %s", strings.Join(rec.Aliases, ", "))
	}
	return b.String()
}

// AllHelp returns one line per listed command, alphabetically by canonical
// name.
func (p *Parser) AllHelp() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, name := range p.Commands() {
		rec := p.Lookup(name)
		if rec == nil {
			continue
		}
		fmt.Fprintf(&b, "\r\n  %-10s %s", rec.Command, rec.Description)
	}
	return b.String()
}
