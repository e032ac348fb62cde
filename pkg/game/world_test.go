package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultWorldNavigation(t *testing.T) {
	w := DefaultWorld()
	start := w.GetStartingRoomID()
	if start != "square" {
		t.Fatalf("starting room = %q, want square", start)
	}

	exit := w.FindExit(start, "north")
	if exit == nil || exit.ToRoomID != "market" {
		t.Fatalf("north exit = %+v, want to market", exit)
	}
	if w.FindExit(start, "down") != nil {
		t.Error("nonexistent exit returned")
	}

	w.PlaceSession("s1", start)
	if !w.MovePlayer("s1", start, exit.ToRoomID) {
		t.Fatal("move to market failed")
	}
	if !w.MovePlayer("s1", "market", "square") {
		t.Fatal("move back failed")
	}
	if w.MovePlayer("s1", "docks", "square") {
		t.Error("move with wrong from-room succeeded")
	}
	if w.MovePlayer("s1", "square", "nowhere") {
		t.Error("move to unknown room succeeded")
	}
}

func TestRoomDescription(t *testing.T) {
	w := DefaultWorld()
	desc := w.GetRoomDescription("square")
	if !strings.Contains(desc, "Town Square") || !strings.Contains(desc, "fountain") {
		t.Errorf("description missing content: %q", desc)
	}
	if w.GetRoomDescription("nowhere") != "" {
		t.Error("unknown room returned a description")
	}
}

func TestLoadWorld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.yaml")
	data := `starting_room: cell
rooms:
  - id: cell
    name: Stone Cell
    description: Damp stone on every side.
    exits:
      - direction: out
        to: hall
  - id: hall
    name: Long Hall
    description: Torchlight flickers.
    exits:
      - direction: in
        to: cell
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWorld(path)
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if w.GetStartingRoomID() != "cell" {
		t.Errorf("starting room = %q, want cell", w.GetStartingRoomID())
	}
	if w.RoomCount() != 2 {
		t.Errorf("room count = %d, want 2", w.RoomCount())
	}
	if exit := w.FindExit("cell", "out"); exit == nil || exit.ToRoomID != "hall" {
		t.Errorf("out exit = %+v", exit)
	}
}

func TestLoadWorldErrors(t *testing.T) {
	if _, err := LoadWorld(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: want error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("starting_room: nowhere\nrooms:\n  - id: a\n    description: x\n"), 0644)
	if _, err := LoadWorld(path); err == nil {
		t.Error("undefined starting room: want error")
	}
}

func TestPlayers(t *testing.T) {
	p := NewPlayers()
	pl := p.CreatePlayer("s1", "alice", "square")
	if pl == nil || p.Count() != 1 {
		t.Fatal("create failed")
	}
	if p.GetPlayerBySessionID("s1") != pl || p.GetPlayerByUsername("alice") != pl {
		t.Error("lookups disagree")
	}

	p.SetRoom("s1", "market")
	if p.GetPlayerBySessionID("s1").RoomID != "market" {
		t.Error("SetRoom did not stick")
	}

	p.RemovePlayerBySessionID("s1")
	if p.GetPlayerBySessionID("s1") != nil || p.GetPlayerByUsername("alice") != nil {
		t.Error("remove left records behind")
	}
	p.RemovePlayerBySessionID("s1") // idempotent
}
