package world

import (
	"errors"
	"fmt"
)

// Graph is the immutable room graph shared by every session.
// It has no write path after NewGraph returns, so reads need no locking.
type Graph struct {
	rooms []*Room
	index map[int]*Room
}

// NewGraph builds a Graph from a room table and an exit table.
// Exits are attached to their location room in the order they are declared.
//
// Precondition: rooms must be non-empty.
// Postcondition: Returns a Graph, or an error on empty input, duplicate room or exit IDs,
// or exits referencing undeclared rooms.
func NewGraph(rooms []Room, exits []Exit) (*Graph, error) {
	if len(rooms) == 0 {
		return nil, errors.New("world must contain at least one room")
	}

	g := &Graph{
		rooms: make([]*Room, 0, len(rooms)),
		index: make(map[int]*Room, len(rooms)),
	}
	for i := range rooms {
		r := rooms[i]
		if _, exists := g.index[r.ID]; exists {
			return nil, fmt.Errorf("duplicate room ID %d", r.ID)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		r.Exits = nil
		g.rooms = append(g.rooms, &r)
		g.index[r.ID] = &r
	}

	seen := make(map[int]bool, len(exits))
	for _, e := range exits {
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate exit ID %d", e.ID)
		}
		seen[e.ID] = true
		if e.Direction == "" {
			return nil, fmt.Errorf("exit %d: direction must not be empty", e.ID)
		}
		from, ok := g.index[e.LocationID]
		if !ok {
			return nil, fmt.Errorf("exit %d: location %d is not a known room", e.ID, e.LocationID)
		}
		if _, ok := g.index[e.DestinationID]; !ok {
			return nil, fmt.Errorf("exit %d: destination %d is not a known room", e.ID, e.DestinationID)
		}
		from.Exits = append(from.Exits, e)
	}

	return g, nil
}

// DefaultRoomID returns the ID of the starting room, the first room declared.
func (g *Graph) DefaultRoomID() int {
	return g.rooms[0].ID
}

// Room returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) for unknown IDs.
func (g *Graph) Room(id int) (*Room, bool) {
	r, ok := g.index[id]
	return r, ok
}

// Move resolves movement from a room in a direction. The first declared exit
// matching direction wins. Moving toward a direction with no exit leaves the
// player where they are.
//
// Precondition: fromRoomID must be a known room; direction must already be normalized.
// Postcondition: Returns the destination room ID, or fromRoomID when no exit matches.
func (g *Graph) Move(fromRoomID int, direction string) int {
	from, ok := g.index[fromRoomID]
	if !ok {
		return fromRoomID
	}
	exit, ok := from.ExitForDirection(direction)
	if !ok {
		return fromRoomID
	}
	return exit.DestinationID
}

// PrintableExits renders each exit of room as "<destination name>#(<direction>)"
// in declaration order, duplicates included.
func (g *Graph) PrintableExits(room *Room) []string {
	out := make([]string, 0, len(room.Exits))
	for _, e := range room.Exits {
		name := ""
		if dest, ok := g.index[e.DestinationID]; ok {
			name = dest.Name
		}
		out = append(out, fmt.Sprintf("%s#(%s)", name, e.Direction))
	}
	return out
}

// Rooms returns all rooms in declaration order.
func (g *Graph) Rooms() []*Room {
	out := make([]*Room, len(g.rooms))
	copy(out, g.rooms)
	return out
}

// RoomCount returns the number of rooms in the graph.
func (g *Graph) RoomCount() int {
	return len(g.rooms)
}
