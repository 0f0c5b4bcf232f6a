package command

import (
	"errors"
	"fmt"
)

// Registry holds the two role-scoped, ordered command sets.
// Definitions are expected to have disjoint keys; when they overlap the
// first definition in sequence order wins.
type Registry struct {
	anonymous     []Definition
	authenticated []Definition
}

// NewRegistry creates a Registry from the anonymous and authenticated command sets.
//
// Precondition: every definition must have at least one key and a Parse function.
// Postcondition: Returns a Registry or an error describing the first malformed definition.
func NewRegistry(anonymous, authenticated []Definition) (*Registry, error) {
	for _, set := range [][]Definition{anonymous, authenticated} {
		for i, def := range set {
			if len(def.Keys) == 0 {
				return nil, fmt.Errorf("command definition %d has no keys", i)
			}
			if def.Parse == nil {
				return nil, fmt.Errorf("command %q has no parse function", def.String())
			}
		}
	}
	if len(anonymous) == 0 || len(authenticated) == 0 {
		return nil, errors.New("both command sets must be non-empty")
	}
	return &Registry{
		anonymous:     append([]Definition(nil), anonymous...),
		authenticated: append([]Definition(nil), authenticated...),
	}, nil
}

// DefaultRegistry creates a Registry with the built-in commands.
//
// Postcondition: Returns a Registry with all built-in commands registered.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(AnonymousCommands(), AuthenticatedCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
}

func (r *Registry) set(authenticated bool) []Definition {
	if authenticated {
		return r.authenticated
	}
	return r.anonymous
}

// ParseCommand parses a raw line against the command set of the given role.
//
// Postcondition: Returns the Event of the first matching definition, or an
// InvalidCommand event with empty args when nothing matches or the line is blank.
func (r *Registry) ParseCommand(line string, authenticated bool) Event {
	tokens := Tokenize(line)
	if tokens.Key == "" {
		return newEvent(InvalidCommand, nil)
	}
	for _, def := range r.set(authenticated) {
		if def.IsCommand(tokens.Key) {
			return def.Parse(tokens.All)
		}
	}
	return newEvent(InvalidCommand, nil)
}

// AvailableCommands renders each definition of the role's set as its keys
// joined by "|", in declaration order.
func (r *Registry) AvailableCommands(authenticated bool) []string {
	set := r.set(authenticated)
	out := make([]string, 0, len(set))
	for _, def := range set {
		out = append(out, def.String())
	}
	return out
}

var defaultRegistry = DefaultRegistry()

// ParseCommand parses line with the default registry.
func ParseCommand(line string, authenticated bool) Event {
	return defaultRegistry.ParseCommand(line, authenticated)
}

// AvailableCommands lists the default registry's commands for the role.
func AvailableCommands(authenticated bool) []string {
	return defaultRegistry.AvailableCommands(authenticated)
}
