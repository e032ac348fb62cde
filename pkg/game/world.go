package game

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Room is one location in the world graph.
type Room struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Exits       []Exit `yaml:"exits"`
}

// worldFile is the on-disk YAML layout.
type worldFile struct {
	StartingRoom string `yaml:"starting_room"`
	Rooms        []Room `yaml:"rooms"`
}

// World is an in-memory WorldManager. It tracks which room each session
// occupies; movement is plain exit lookup, nothing graph-theoretic.
type World struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	occupant map[string]string // sessionID -> roomID
	starting string
}

// NewWorld creates a world from a set of rooms. The first room is the
// starting room unless startingRoom names another.
func NewWorld(rooms []Room, startingRoom string) *World {
	w := &World{
		rooms:    make(map[string]*Room, len(rooms)),
		occupant: make(map[string]string),
		starting: startingRoom,
	}
	for i := range rooms {
		r := rooms[i]
		w.rooms[r.ID] = &r
		if w.starting == "" {
			w.starting = r.ID
		}
	}
	return w
}

// LoadWorld reads a YAML world definition from disk.
func LoadWorld(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("world: reading %s: %w", path, err)
	}
	var wf worldFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("world: parsing %s: %w", path, err)
	}
	if len(wf.Rooms) == 0 {
		return nil, fmt.Errorf("world: %s defines no rooms", path)
	}
	w := NewWorld(wf.Rooms, wf.StartingRoom)
	if _, ok := w.rooms[w.starting]; !ok {
		return nil, fmt.Errorf("world: starting room %q not defined", w.starting)
	}
	return w, nil
}

// DefaultWorld returns the built-in three-room world used when no world
// file is configured.
func DefaultWorld() *World {
	return NewWorld([]Room{
		{
			ID:          "square",
			Name:        "Town Square",
			Description: "A broad cobblestone square. A fountain murmurs in the center. Roads lead north and east.",
			Exits: []Exit{
				{Direction: "north", ToRoomID: "market"},
				{Direction: "east", ToRoomID: "docks"},
			},
		},
		{
			ID:          "market",
			Name:        "Market Street",
			Description: "Stalls crowd both sides of the street. The square lies to the south.",
			Exits: []Exit{
				{Direction: "south", ToRoomID: "square"},
			},
		},
		{
			ID:          "docks",
			Name:        "The Docks",
			Description: "Salt air and creaking ropes. The square is back to the west.",
			Exits: []Exit{
				{Direction: "west", ToRoomID: "square"},
			},
		},
	}, "square")
}

// GetStartingRoomID implements WorldManager.
func (w *World) GetStartingRoomID() string {
	return w.starting
}

// GetRoomDescription implements WorldManager. Unknown rooms yield "".
func (w *World) GetRoomDescription(roomID string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rooms[roomID]
	if !ok {
		return ""
	}
	if r.Name != "" {
		return r.Name + "\r\n" + r.Description
	}
	return r.Description
}

// FindExit implements WorldManager.
func (w *World) FindExit(roomID, direction string) *Exit {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rooms[roomID]
	if !ok {
		return nil
	}
	for i := range r.Exits {
		if strings.EqualFold(r.Exits[i].Direction, direction) {
			e := r.Exits[i]
			return &e
		}
	}
	return nil
}

// MovePlayer implements WorldManager. It fails if the destination does not
// exist or the session is not where the caller thinks it is.
func (w *World) MovePlayer(sessionID, fromRoomID, toRoomID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.rooms[toRoomID]; !ok {
		return false
	}
	if cur, ok := w.occupant[sessionID]; ok && cur != fromRoomID {
		return false
	}
	w.occupant[sessionID] = toRoomID
	return true
}

// PlaceSession records a session's initial room.
func (w *World) PlaceSession(sessionID, roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.occupant[sessionID] = roomID
}

// SessionsIn returns the session IDs currently in a room.
func (w *World) SessionsIn(roomID string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var ids []string
	for sid, rid := range w.occupant {
		if rid == roomID {
			ids = append(ids, sid)
		}
	}
	return ids
}

// RoomOf returns the room a session occupies, or "".
func (w *World) RoomOf(sessionID string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.occupant[sessionID]
}

// RemoveSession forgets a session's room.
func (w *World) RemoveSession(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.occupant, sessionID)
}

// RoomCount returns the number of rooms.
func (w *World) RoomCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.rooms)
}

// AddRoom inserts or replaces a room (admin tooling).
func (w *World) AddRoom(r Room) {
	w.mu.Lock()
	defer w.mu.Unlock()
	room := r
	w.rooms[r.ID] = &room
}

// SetRoomDescription updates a room's description; false if unknown.
func (w *World) SetRoomDescription(roomID, desc string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rooms[roomID]
	if !ok {
		return false
	}
	r.Description = desc
	return true
}
