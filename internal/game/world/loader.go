package world

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content/k6.yaml
var defaultWorldYAML []byte

// yamlWorldFile is the top-level YAML structure for world files.
type yamlWorldFile struct {
	Rooms []yamlRoom `yaml:"rooms"`
	Exits []yamlExit `yaml:"exits"`
}

// yamlRoom is the YAML representation of a room.
type yamlRoom struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// yamlExit is the YAML representation of an exit.
type yamlExit struct {
	ID          int    `yaml:"id"`
	Direction   string `yaml:"direction"`
	Location    int    `yaml:"location"`
	Destination int    `yaml:"destination"`
}

// LoadGraphFromFile reads and validates a world YAML file.
//
// Precondition: path must point to a valid YAML world file.
// Postcondition: Returns a validated Graph or a non-nil error.
func LoadGraphFromFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %s: %w", path, err)
	}
	return LoadGraphFromBytes(data)
}

// LoadGraphFromBytes parses and validates a world from YAML bytes.
//
// Postcondition: Returns a validated Graph or a non-nil error.
func LoadGraphFromBytes(data []byte) (*Graph, error) {
	var file yamlWorldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing world YAML: %w", err)
	}

	rooms := make([]Room, 0, len(file.Rooms))
	for _, yr := range file.Rooms {
		rooms = append(rooms, Room{
			ID:          yr.ID,
			Name:        yr.Name,
			Description: strings.TrimSpace(yr.Description),
		})
	}
	exits := make([]Exit, 0, len(file.Exits))
	for _, ye := range file.Exits {
		exits = append(exits, Exit{
			ID:            ye.ID,
			Direction:     ye.Direction,
			LocationID:    ye.Location,
			DestinationID: ye.Destination,
		})
	}

	g, err := NewGraph(rooms, exits)
	if err != nil {
		return nil, fmt.Errorf("validating world: %w", err)
	}
	return g, nil
}

// DefaultGraph returns the built-in k6 offices world.
//
// Postcondition: Returns a validated Graph; panics if the embedded table is invalid.
func DefaultGraph() *Graph {
	g, err := LoadGraphFromBytes(defaultWorldYAML)
	if err != nil {
		panic(fmt.Sprintf("building default world: %v", err))
	}
	return g
}
