package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebServer provides the HTTP/WebSocket gateway alongside the telnet
// listeners. WebSocket clients become ordinary sessions through a net.Conn
// adapter, so the whole session pipeline applies to them unchanged.
type WebServer struct {
	server   *Server
	httpSrv  *http.Server
	mux      *http.ServeMux
	auth     *AuthService
	rl       *httpRateLimiter
	upgrader websocket.Upgrader
}

// NewWebServer creates the gateway bound to the game server.
func NewWebServer(s *Server, cfg WebConfig) *WebServer {
	ws := &WebServer{
		server: s,
		mux:    http.NewServeMux(),
		auth:   NewAuthService(s.accounts, cfg.JWTSecret, cfg.JWTExpiry),
		rl:     newHTTPRateLimiter(cfg.RateLimit),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	ws.registerRoutes(cfg)
	return ws
}

// Auth returns the JWT auth service.
func (ws *WebServer) Auth() *AuthService { return ws.auth }

func (ws *WebServer) registerRoutes(cfg WebConfig) {
	handler := http.Handler(ws.mux)
	handler = rateLimitMiddleware(ws.rl, handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)

	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
	}

	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)
	ws.mux.HandleFunc("POST /api/v1/auth/login", ws.handleAuthLogin)
	ws.mux.HandleFunc("POST /api/v1/auth/refresh", ws.handleAuthRefresh)
	ws.mux.Handle("GET /api/v1/stats", authMiddleware(ws.auth, true, http.HandlerFunc(ws.handleStats)))
	ws.mux.Handle("GET /api/v1/history", authMiddleware(ws.auth, true, http.HandlerFunc(ws.handleHistory)))
	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	if ws.server.metrics != nil {
		ws.mux.Handle("GET /metrics", ws.server.metrics.Handler())
	}
}

// Start begins listening. HTTPS is used when TLS material is configured,
// plain HTTP otherwise.
func (ws *WebServer) Start(cfg WebConfig) error {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ws.rl.cleanup()
		}
	}()

	hasTLS := cfg.Domain != "" || (cfg.CertFile != "" && cfg.KeyFile != "") || cfg.CertDir != ""
	if hasTLS {
		result, err := SetupWebTLS(cfg.Domain, cfg.CertFile, cfg.KeyFile, cfg.CertDir)
		if err != nil {
			log.Printf("web: TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = result.Config
			if result.AutocertMgr != nil {
				// ACME HTTP-01 challenges need a listener on :80.
				go func() {
					httpSrv := &http.Server{
						Addr:    ":80",
						Handler: result.AutocertMgr.HTTPHandler(nil),
					}
					log.Printf("ACME HTTP challenge listener on :80")
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Printf("ACME HTTP listener error: %v", err)
					}
				}()
			}
			log.Printf("Web server listening on %s (HTTPS)", ws.httpSrv.Addr)
			err = ws.httpSrv.ListenAndServeTLS("", "")
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	}

	log.Printf("Web server listening on %s (HTTP)", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the gateway.
func (ws *WebServer) Stop(ctx context.Context) error {
	return ws.httpSrv.Shutdown(ctx)
}

// --- WebSocket transport ---

// handleWebSocket upgrades the connection and hands it to the session
// pipeline. A valid bearer token (header or ?token=) skips the login
// handshake.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *Claims
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = header[7:]
		}
	}
	if token != "" {
		var err error
		claims, err = ws.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	wsConn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	conn := newWSNetConn(wsConn, forwardedAddr(r))
	s := ws.server

	if s.sessions.Count() >= s.cfg.MaxConnections {
		conn.Write([]byte(s.textOr(s.texts.GetFull, "The server is full. Please try again later.\r\n")))
		conn.Close()
		return
	}

	sess := s.sessions.Create(conn)
	if m := s.metricsRef(); m != nil {
		m.ConnectionOpened("websocket")
	}

	if claims != nil {
		// Token auth: skip the prompt handshake.
		if err := s.sessions.Authenticate(sess.ID, claims.Username, uuid.NewString(), claims.Role); err != nil {
			s.sessions.Disconnect(sess.ID, "Login failed")
			return
		}
		start := s.world.GetStartingRoomID()
		s.players.CreatePlayer(sess.ID, claims.Username, start)
		s.world.PlaceSession(sess.ID, start)
		s.sessions.Send(sess.ID, fmt.Sprintf("Welcome, %s!", claims.Username), "system")
		s.sessions.Send(sess.ID, s.world.GetRoomDescription(start), "room")
		s.announceToRoom(start, sess.ID, fmt.Sprintf("%s has entered the game.", claims.Username))
	} else {
		sess.WriteRaw([]byte(s.textOr(s.texts.GetWelcome, defaultWelcome)))
		go s.runLogin(sess)
	}

	go func() {
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
	}()
}

// forwardedAddr resolves the client address behind a reverse proxy.
func forwardedAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// wsNetConn adapts a gorilla WebSocket connection to net.Conn so the
// session layer can treat both transports identically. Each incoming
// message is surfaced as one read chunk; writes become text messages.
type wsNetConn struct {
	ws     *websocket.Conn
	reader io.Reader
	addr   wsAddr
}

type wsAddr string

func (a wsAddr) Network() string { return "websocket" }
func (a wsAddr) String() string  { return string(a) }

func newWSNetConn(ws *websocket.Conn, remote string) *wsNetConn {
	return &wsNetConn{ws: ws, addr: wsAddr(remote)}
}

func (c *wsNetConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *wsNetConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsNetConn) Close() error { return c.ws.Close() }

func (c *wsNetConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsNetConn) RemoteAddr() net.Addr { return c.addr }

func (c *wsNetConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}
func (c *wsNetConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsNetConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

// --- HTTP handlers ---

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	token, err := ws.auth.Login(req.Username, req.Password)
	if err != nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
		return
	}
	newToken, err := ws.auth.RefreshToken(header[7:])
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": newToken})
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ws.server.Stats())
}

func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if ws.server.history == nil {
		http.Error(w, `{"error":"history not configured"}`, http.StatusNotFound)
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = "global"
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	entries, err := ws.server.history.Recent(channel, limit)
	if err != nil {
		log.Printf("web: history query: %v", err)
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"channel": channel, "entries": entries})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"version":  versionString(),
		"sessions": ws.server.sessions.Count(),
	})
}
