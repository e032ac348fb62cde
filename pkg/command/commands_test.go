package command

import (
	"strings"
	"testing"
	"time"

	"github.com/driftwood-mud/driftwood/pkg/ansi"
	"github.com/driftwood-mud/driftwood/pkg/events"
	"github.com/driftwood-mud/driftwood/pkg/session"
)

func TestWhoEmptyAndCounts(t *testing.T) {
	f := newFixture(t)
	if got := f.parser.Parse("nobody", "who"); got != "No players are currently online." {
		t.Errorf("empty who: %q", got)
	}

	alice, _ := f.login(t, "alice")
	got := f.parser.Parse(alice.ID, "who")
	if !strings.Contains(got, "alice - active") || !strings.Contains(got, "1 player online") {
		t.Errorf("single who: %q", got)
	}

	bob, _ := f.login(t, "bob")
	got = f.parser.Parse(bob.ID, "who")
	if !strings.Contains(got, "2 players online") {
		t.Errorf("plural who: %q", got)
	}
}

func TestSay(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")

	if got := f.parser.Parse(alice.ID, "say"); got != "Usage: say <message>" {
		t.Errorf("usage: %q", got)
	}

	var ev events.Event
	f.bus.On(events.ChatMessage, func(e events.Event) error {
		ev = e
		return nil
	})
	got := f.parser.Parse(alice.ID, `say "hello there"`)
	if got != `You say, "hello there"` {
		t.Errorf("confirmation: %q", got)
	}
	if ev.Data["username"] != "alice" || ev.Data["message"] != "hello there" {
		t.Errorf("chat event: %+v", ev.Data)
	}
	if ev.Data["room"] != f.world.GetStartingRoomID() {
		t.Errorf("room: %v", ev.Data["room"])
	}
}

func TestSayApostropheShorthand(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")

	var ev events.Event
	f.bus.On(events.CommandReceived, func(e events.Event) error {
		ev = e
		return nil
	})
	got := f.parser.Parse(alice.ID, "'hello there")
	if got != `You say, "hello there"` {
		t.Errorf("shorthand say: %q", got)
	}
	if ev.Data["command"] != "say" {
		t.Errorf("command event: %+v", ev.Data)
	}

	// A bare apostrophe is an empty line, not an unknown command.
	if got := f.parser.Parse(alice.ID, "'"); got != "" {
		t.Errorf("bare apostrophe: %q", got)
	}
}

func TestSayWithoutPlayerManager(t *testing.T) {
	f := newFixture(t)
	f.parser = NewParser(f.bus, f.mgr, f.world, nil, session.NopLogger())
	alice, _ := f.login(t, "alice")

	got := f.parser.Parse(alice.ID, "say hi")
	if got != `You say, "hi"` {
		t.Errorf("say without player manager: %q", got)
	}
}

func TestLook(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")

	got := f.parser.Parse(alice.ID, "look")
	if !strings.Contains(got, f.world.GetRoomDescription(f.world.GetStartingRoomID())) {
		t.Errorf("look: %q", got)
	}

	// Alias.
	if f.parser.Parse(alice.ID, "l") != got {
		t.Error("alias l differs from look")
	}
}

func TestLookWithoutWorld(t *testing.T) {
	f := newFixture(t)
	f.parser = NewParser(f.bus, f.mgr, nil, f.players, session.NopLogger())
	alice, _ := f.login(t, "alice")
	got := f.parser.Parse(alice.ID, "look")
	if got == "" || strings.Contains(got, "error") {
		t.Errorf("look without world should degrade gracefully: %q", got)
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	if got := f.parser.Parse("sess", "clear"); got != ansi.ClearScreen {
		t.Errorf("clear: %q", got)
	}
}

func TestWhisper(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")
	bob, bobClient := f.login(t, "bob")

	cases := []struct {
		in   string
		want string
	}{
		{"whisper", "Usage: whisper <player> <message>"},
		{"whisper bob", "Usage: whisper <player> <message>"},
		{"whisper Alice hi", "You can't whisper to yourself."},
		{"whisper ghost hi", "There is no player named 'ghost'."},
	}
	for _, tc := range cases {
		if got := f.parser.Parse(alice.ID, tc.in); got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}

	got := f.parser.Parse(alice.ID, "whisper bob meet me at the docks")
	if got != "You whisper to bob: meet me at the docks" {
		t.Errorf("whisper echo: %q", got)
	}
	time.Sleep(20 * time.Millisecond)
	if !strings.Contains(bobClient.received(), "alice whispers: meet me at the docks") {
		t.Errorf("bob received %q", bobClient.received())
	}

	// Target with a player record but a dead session reads as offline.
	f.mgr.Disconnect(bob.ID, "")
	if got := f.parser.Parse(alice.ID, "whisper bob hi"); got != "bob is not online." {
		t.Errorf("offline whisper: %q", got)
	}
}

func TestWhisperRequiresManagers(t *testing.T) {
	f := newFixture(t)
	f.parser = NewParser(f.bus, f.mgr, nil, nil, session.NopLogger())
	alice, _ := f.login(t, "alice")
	got := f.parser.Parse(alice.ID, "whisper bob hi")
	if got != "Whisper is unavailable right now." {
		t.Errorf("got %q", got)
	}
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")

	var ev events.Event
	f.bus.On(events.ChatGlobal, func(e events.Event) error {
		ev = e
		return nil
	})
	got := f.parser.Parse(alice.ID, "chat anyone around")
	if got != "[Chat] alice: anyone around" {
		t.Errorf("chat echo: %q", got)
	}
	if ev.Data["username"] != "alice" || ev.Data["message"] != "anyone around" {
		t.Errorf("chat event: %+v", ev.Data)
	}

	// An untracked session cannot use global chat.
	if got := f.parser.Parse("stranger", "chat hi"); got != "You must be logged in to chat." {
		t.Errorf("untracked chat: %q", got)
	}
}

func TestMovementEmitsEvent(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")

	var dirs []string
	f.bus.On(events.PlayerMove, func(e events.Event) error {
		dirs = append(dirs, e.Data["direction"].(string))
		return nil
	})

	for _, in := range []string{"north", "n", "go south", "move e", "sw", "up"} {
		f.parser.Parse(alice.ID, in)
	}
	want := []string{"north", "north", "south", "east", "southwest", "up"}
	if len(dirs) != len(want) {
		t.Fatalf("got %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Fatalf("got %v, want %v", dirs, want)
		}
	}

	if got := f.parser.Parse(alice.ID, "go"); got != "Usage: go <direction>" {
		t.Errorf("go usage: %q", got)
	}
}

func TestQuitDisconnects(t *testing.T) {
	f := newFixture(t)
	alice, client := f.login(t, "alice")

	f.parser.Parse(alice.ID, "quit")
	time.Sleep(20 * time.Millisecond)
	if f.mgr.Get(alice.ID) != nil {
		t.Error("session still registered after quit")
	}
	if !strings.Contains(client.received(), "Disconnected: Quit") {
		t.Errorf("client received %q", client.received())
	}
}

func TestAdminFlow(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.login(t, "alice")

	// Regular players cannot enable admin mode.
	if got := f.parser.Parse(alice.ID, "admin enable"); got != "You are not an administrator." {
		t.Errorf("player enable: %q", got)
	}

	root, _ := f.loginWithRole(t, "root", "admin")

	// Editing before enable is refused.
	if got := f.parser.Parse(root.ID, "admin create room vault Vault"); got != "Run 'admin enable' first." {
		t.Errorf("pre-enable create: %q", got)
	}

	if got := f.parser.Parse(root.ID, "admin enable"); got != "Admin commands enabled." {
		t.Errorf("enable: %q", got)
	}
	if got := f.parser.Parse(root.ID, "admin create room vault The Vault"); got != "Room 'vault' created." {
		t.Errorf("create: %q", got)
	}
	if got := f.parser.Parse(root.ID, `admin set description vault "A dim vault."`); got != "Description of 'vault' updated." {
		t.Errorf("set: %q", got)
	}
	if got := f.parser.Parse(root.ID, "admin set description nowhere x"); got != "No room with id 'nowhere'." {
		t.Errorf("set unknown room: %q", got)
	}
	if !strings.Contains(f.world.GetRoomDescription("vault"), "A dim vault.") {
		t.Error("description not applied to world")
	}
}

func (f *fixture) loginWithRole(t *testing.T, username, role string) (*session.Session, *testClient) {
	t.Helper()
	server, client := newPipe(t)
	tc := newTestClient(client)
	s := f.mgr.Create(server)
	if err := f.mgr.Authenticate(s.ID, username, "uid-"+username, role); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	f.players.CreatePlayer(s.ID, username, f.world.GetStartingRoomID())
	return s, tc
}
