package server

import (
	"bytes"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftwood-mud/driftwood/pkg/game"
	"github.com/driftwood-mud/driftwood/pkg/store"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0 // OS-assigned
	cfg.ConnTimeout = 5 * time.Second
	cfg.LoginRetries = 3
	cfg.RateLimitMax = 1000
	return cfg
}

func startTestServer(t *testing.T, cfg Config, accounts *store.Accounts) *Server {
	t.Helper()
	srv := NewServer(cfg, game.DefaultWorld(), accounts, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

// client is a line-oriented telnet test client.
type client struct {
	t    *testing.T
	conn net.Conn
	buf  bytes.Buffer
}

func dialTest(t *testing.T, srv *Server) *client {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

// expect reads until the accumulated output contains want, or fails after
// the deadline.
func (c *client) expect(want string) string {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	chunk := make([]byte, 4096)
	for {
		if idx := strings.Index(c.buf.String(), want); idx >= 0 {
			out := c.buf.String()[:idx+len(want)]
			rest := c.buf.String()[idx+len(want):]
			c.buf.Reset()
			c.buf.WriteString(rest)
			return out
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("timed out waiting for %q, got %q", want, c.buf.String())
		}
		c.conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf.Write(chunk[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !strings.Contains(c.buf.String(), want) {
				c.t.Fatalf("connection closed waiting for %q, got %q", want, c.buf.String())
			}
		}
	}
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

// login drives the handshake through the prompts.
func (c *client) login(username, password string) {
	c.t.Helper()
	c.expect("Username: ")
	c.send(username)
	c.expect("Password: ")
	c.send(password)
	c.expect("Welcome, " + username + "!")
}

func TestLoginAndLook(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	c := dialTest(t, srv)

	c.expect("Welcome to Driftwood.")
	c.login("alice", "pw")
	c.expect("Roads lead north and east.") // login shows the starting room

	c.send("look")
	out := c.expect("Roads lead north and east.")
	if !strings.Contains(out, "Town Square") {
		t.Errorf("look output: %q", out)
	}
}

func TestSayReachesRoommates(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	a := dialTest(t, srv)
	a.login("alice", "pw")
	b := dialTest(t, srv)
	b.login("bob", "pw")

	a.expect("bob has entered the game.")
	b.send("say hello all")
	b.expect(`You say, "hello all"`)
	a.expect(`bob says, "hello all"`)
}

func TestMovementAnnounces(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	a := dialTest(t, srv)
	a.login("alice", "pw")
	b := dialTest(t, srv)
	b.login("bob", "pw")
	a.expect("bob has entered the game.")

	b.send("north")
	b.expect("Market Street")
	a.expect("bob leaves north.")

	// Bad direction stays put with a message.
	b.send("down")
	b.expect("You can't go that way.")
}

func TestWhoAndVersion(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	c := dialTest(t, srv)
	c.login("alice", "pw")

	c.send("who")
	out := c.expect("1 player online")
	if !strings.Contains(out, "alice") {
		t.Errorf("who output: %q", out)
	}

	c.send("version")
	c.expect("Driftwood MUD server")
}

func TestQuit(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	c := dialTest(t, srv)
	c.login("alice", "pw")

	c.send("quit")
	c.expect("Disconnected: Quit")

	deadline := time.Now().Add(2 * time.Second)
	for srv.Sessions().Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := srv.Sessions().Count(); n != 0 {
		t.Errorf("%d sessions left after quit", n)
	}
}

func TestRateLimitWarnsOnce(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMax = 3
	cfg.RateLimitWindow = time.Minute
	srv := startTestServer(t, cfg, nil)
	c := dialTest(t, srv)
	c.login("alice", "pw")
	c.expect("Roads lead north and east.")

	// The two login lines used the window; one more command is allowed,
	// the next trips the limiter.
	c.send("who")
	c.expect("1 player online")
	c.send("who")
	c.expect("Slow down.")

	// Drain quietly; a second warning for the same input is a defect.
	deadline := time.Now().Add(400 * time.Millisecond)
	chunk := make([]byte, 4096)
	for time.Now().Before(deadline) {
		c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf.Write(chunk[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			break
		}
	}
	if extra := strings.Count(c.buf.String(), "Slow down."); extra != 0 {
		t.Errorf("got %d extra rate limit warnings", extra)
	}
}

func TestServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	srv := startTestServer(t, cfg, nil)

	a := dialTest(t, srv)
	a.expect("Username: ")

	b := dialTest(t, srv)
	b.expect("The server is full.")
}

func TestInvalidUsernameRetries(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	c := dialTest(t, srv)

	c.expect("Username: ")
	c.send("x")
	c.expect("Username: ")
	c.send("alice")
	c.expect("Password: ")
	c.send("pw")
	c.expect("Welcome, alice!")
}

func TestDuplicateUsernameRejected(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	a := dialTest(t, srv)
	a.login("alice", "pw")

	b := dialTest(t, srv)
	b.expect("Username: ")
	b.send("alice")
	b.expect("That name is already connected.")
}

func TestLoginTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ConnTimeout = 200 * time.Millisecond
	srv := startTestServer(t, cfg, nil)

	c := dialTest(t, srv)
	c.expect("Username: ")
	c.expect("Disconnected: Login timeout")
}

func TestAccountAuthentication(t *testing.T) {
	accounts, err := store.Open(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { accounts.Close() })
	if _, err := accounts.Create("alice", "hunter2", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	srv := startTestServer(t, testConfig(), accounts)

	// Wrong password is refused and re-prompted.
	c := dialTest(t, srv)
	c.expect("Username: ")
	c.send("alice")
	c.expect("Password: ")
	c.send("wrong")
	c.expect("Invalid username or password.")
	c.expect("Username: ")
	c.send("alice")
	c.expect("Password: ")
	c.send("hunter2")
	c.expect("Welcome, alice!")
}

func TestAccountAutoRegistration(t *testing.T) {
	accounts, err := store.Open(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { accounts.Close() })

	srv := startTestServer(t, testConfig(), accounts)
	c := dialTest(t, srv)
	c.login("newbie", "firstpw")

	if _, err := accounts.Get("newbie"); err != nil {
		t.Errorf("account not created on first login: %v", err)
	}
}

func TestServerStats(t *testing.T) {
	srv := startTestServer(t, testConfig(), nil)
	c := dialTest(t, srv)
	c.login("alice", "pw")

	st := srv.Stats()
	if !st.Running {
		t.Error("Running false")
	}
	if st.Players != 1 || st.Authenticated != 1 {
		t.Errorf("players=%d authenticated=%d", st.Players, st.Authenticated)
	}
	if st.Rooms == 0 || len(st.Commands) == 0 {
		t.Errorf("rooms=%d commands=%d", st.Rooms, len(st.Commands))
	}
}
