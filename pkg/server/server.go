// Package server ties the session manager, command parser, world, and
// storage together behind TCP, TLS, and WebSocket listeners.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/driftwood-mud/driftwood/pkg/command"
	"github.com/driftwood-mud/driftwood/pkg/events"
	"github.com/driftwood-mud/driftwood/pkg/game"
	"github.com/driftwood-mud/driftwood/pkg/session"
	"github.com/driftwood-mud/driftwood/pkg/store"
)

const defaultWelcome = "Welcome to Driftwood.\r\n"

// Server is the main game server.
type Server struct {
	cfg      Config
	bus      *events.Bus
	sessions *session.Manager
	parser   *command.Parser
	world    *game.World
	players  *game.Players
	accounts *store.Accounts // nil means accept-any authentication
	texts    *TextFiles
	metrics  *Metrics
	history  *HistoryStore
	scroll   *ScrollbackWriter
	web      *WebServer

	mu          sync.Mutex
	listener    net.Listener
	tlsListener net.Listener
	archiveStop chan struct{}
	running     bool
	startTime   time.Time
}

// NewServer wires up a server from its collaborators. The accounts store
// and history store may be nil.
func NewServer(cfg Config, world *game.World, accounts *store.Accounts, history *HistoryStore) *Server {
	bus := events.NewBus(0)
	sessions := session.NewManager(cfg.SessionConfig(), bus, session.DefaultLogger())
	players := game.NewPlayers()
	parser := command.NewParser(bus, sessions, world, players, session.DefaultLogger())

	s := &Server{
		cfg:      cfg,
		bus:      bus,
		sessions: sessions,
		parser:   parser,
		world:    world,
		players:  players,
		accounts: accounts,
		history:  history,
	}
	if cfg.TextDir != "" {
		s.texts = LoadTextFiles(cfg.TextDir)
		s.texts.Watch()
	}
	s.wireEvents()
	s.registerBackupCommand()
	return s
}

// Bus exposes the event bus, mostly for tests and embedders.
func (s *Server) Bus() *events.Bus { return s.bus }

// Sessions exposes the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Parser exposes the command parser so embedders can register commands.
func (s *Server) Parser() *command.Parser { return s.parser }

// Start opens the configured listeners and begins accepting connections.
// It returns once the listeners are up; use Stop to shut down.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server: already running")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	log.Printf("Listening (telnet) on %s", ln.Addr())
	go s.acceptLoop(ln, "tcp")

	if s.cfg.TLS {
		result, err := SetupTLS(s.cfg.TLSCert, s.cfg.TLSKey, s.cfg.CertDir)
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: tls setup: %w", err)
		}
		tln, err := tls.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.TLSPort), result.Config)
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: tls listen: %w", err)
		}
		s.tlsListener = tln
		log.Printf("Listening (telnet+TLS) on %s", tln.Addr())
		go s.acceptLoop(tln, "tls")
	}

	if s.cfg.Web.Enabled {
		s.metrics = NewMetrics(s)
		s.web = NewWebServer(s, s.cfg.Web)
		go func() {
			if err := s.web.Start(s.cfg.Web); err != nil {
				log.Printf("web server error: %v", err)
			}
		}()
	}

	if s.history != nil {
		s.scroll = NewScrollbackWriter(s.bus, s.history)
		s.scroll.StartRetentionCleanup(s.cfg.HistoryRetention)
	}

	if s.cfg.ArchiveInterval > 0 {
		s.archiveStop = make(chan struct{})
		s.startAutoArchive(s.archiveStop)
		log.Printf("Auto-archive enabled: every %s, retain %d, dir %s",
			s.cfg.ArchiveInterval, s.cfg.ArchiveRetain, s.cfg.ArchiveDir)
	}

	s.sessions.StartMaintenance()
	s.startTime = time.Now()
	s.running = true
	return nil
}

// Addr returns the telnet listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes all listeners and disconnects every session.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	ln, tln, web, scroll := s.listener, s.tlsListener, s.web, s.scroll
	if s.archiveStop != nil {
		close(s.archiveStop)
		s.archiveStop = nil
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if tln != nil {
		tln.Close()
	}
	if web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		web.Stop(ctx)
		cancel()
	}
	if scroll != nil {
		scroll.Close()
	}
	s.sessions.Shutdown("Server shutting down")
	log.Printf("Server stopped")
}

// acceptLoop accepts connections on the given listener until it is closed.
func (s *Server) acceptLoop(ln net.Listener, transport string) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.serveConn(conn, transport)
	}
}

// serveConn manages one client connection lifecycle: capacity check,
// session creation, welcome text, login handshake, then the read loop.
// Input arrives as raw byte chunks; each chunk is one logical line after
// telnet filtering.
func (s *Server) serveConn(conn net.Conn, transport string) {
	if s.sessions.Count() >= s.cfg.MaxConnections {
		msg := s.textOr(s.texts.GetFull, "The server is full. Please try again later.\r\n")
		conn.Write([]byte(msg))
		conn.Close()
		log.Printf("Connection from %s refused: server full", conn.RemoteAddr())
		return
	}

	sess := s.sessions.Create(conn)
	if m := s.metricsRef(); m != nil {
		m.ConnectionOpened(transport)
	}

	sess.WriteRaw([]byte(s.textOr(s.texts.GetWelcome, defaultWelcome)))

	// The handshake runs in its own goroutine and consumes input lines
	// through the event bus while this goroutine keeps reading.
	go s.runLogin(sess)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.sessions.HandleInput(sess.ID, buf[:n])
		}
		if err != nil {
			s.sessions.Disconnect(sess.ID, "")
			return
		}
	}
}

// textOr returns the first non-empty of a TextFiles accessor and a
// fallback. The accessor may belong to a nil TextFiles.
func (s *Server) textOr(get func() string, fallback string) string {
	if s.texts != nil {
		if txt := get(); txt != "" {
			return txt
		}
	}
	return fallback
}

func (s *Server) metricsRef() *Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
