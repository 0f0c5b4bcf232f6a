// Package world provides the static room graph: rooms, directed exits, and movement.
package world

import "fmt"

// Standard compass directions accepted by the movement commands.
const (
	North = "north"
	South = "south"
	East  = "east"
	West  = "west"
)

// directionAliases maps single-letter direction shortcuts to their full names.
var directionAliases = map[string]string{
	"n": North,
	"s": South,
	"e": East,
	"w": West,
}

// NormalizeDirection expands the single-letter aliases n, s, e and w.
// Any other token is returned unchanged, so rooms may declare custom directions.
//
// Postcondition: Returns the canonical direction name.
func NormalizeDirection(dir string) string {
	if full, ok := directionAliases[dir]; ok {
		return full
	}
	return dir
}

// Exit is a one-way passage from LocationID to DestinationID.
type Exit struct {
	// ID uniquely identifies the exit.
	ID int
	// Direction is the direction token that follows this exit (e.g. "west").
	Direction string
	// LocationID is the room the exit leaves from.
	LocationID int
	// DestinationID is the room the exit leads to.
	DestinationID int
}

// Room is a location in the world. Rooms are immutable once the graph is built.
type Room struct {
	// ID uniquely identifies the room.
	ID int
	// Name is the short display name of the room.
	Name string
	// Description is the text shown to players entering or looking at the room.
	Description string
	// Exits lists the passages out of this room in declaration order.
	Exits []Exit
}

// ExitForDirection returns the first declared exit in the given direction.
//
// Postcondition: Returns (exit, true) if found, or (Exit{}, false) otherwise.
func (r *Room) ExitForDirection(dir string) (Exit, bool) {
	for _, e := range r.Exits {
		if e.Direction == dir {
			return e, true
		}
	}
	return Exit{}, false
}

func (r *Room) validate() error {
	if r.Name == "" {
		return fmt.Errorf("room %d: name must not be empty", r.ID)
	}
	if r.Description == "" {
		return fmt.Errorf("room %d: description must not be empty", r.ID)
	}
	return nil
}
