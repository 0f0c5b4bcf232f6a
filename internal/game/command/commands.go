// Package command provides the role-scoped command registry, the line parser,
// and the built-in command definitions.
package command

import (
	"strings"

	"github.com/cory-johannsen/k6mud/internal/game/world"
)

// Definition declares the keys a command answers to and how its tokens are parsed.
type Definition struct {
	// Keys are the lower-case names and aliases of the command.
	Keys []string
	// Parse turns the full token list (key at index 0) into an Event.
	// It must never panic; bad arity maps to the command's Invalid event.
	Parse func(tokens []string) Event
}

// IsCommand reports whether key names this command, ignoring case.
func (d Definition) IsCommand(key string) bool {
	for _, k := range d.Keys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// String returns the keys joined by "|", as shown in the help listing.
func (d Definition) String() string {
	return strings.Join(d.Keys, "|")
}

// RegisterCommand creates an account: register <username> <password>.
var RegisterCommand = Definition{
	Keys: []string{"register"},
	Parse: func(tokens []string) Event {
		if len(tokens) != 3 {
			return newEvent(RegisterInvalid, nil)
		}
		return newEvent(RegisterValid, Args{ArgUsername: tokens[1], ArgPassword: tokens[2]})
	},
}

// ConnectCommand logs in: connect <username> <password>.
var ConnectCommand = Definition{
	Keys: []string{"connect"},
	Parse: func(tokens []string) Event {
		if len(tokens) != 3 {
			return newEvent(LoginInvalid, nil)
		}
		return newEvent(LoginValid, Args{ArgUsername: tokens[1], ArgPassword: tokens[2]})
	},
}

// LogoutCommand ends the authenticated session.
var LogoutCommand = Definition{
	Keys: []string{"quit", "exit", "logout"},
	Parse: func([]string) Event {
		return newEvent(LogoutValid, nil)
	},
}

// DirectionCommand moves the player. The key itself is the direction;
// extra tokens are ignored.
var DirectionCommand = Definition{
	Keys: []string{"north", "south", "east", "west", "n", "s", "e", "w"},
	Parse: func(tokens []string) Event {
		if len(tokens) == 0 {
			return newEvent(InvalidCommand, nil)
		}
		return newEvent(MoveValid, Args{ArgDirection: world.NormalizeDirection(tokens[0])})
	},
}

// LookCommand describes the current room.
var LookCommand = Definition{
	Keys: []string{"look", "l"},
	Parse: func([]string) Event {
		return newEvent(LookValid, nil)
	},
}

// SayCommand speaks to everyone in the room. The message may be empty.
var SayCommand = Definition{
	Keys: []string{"say"},
	Parse: func(tokens []string) Event {
		msg := ""
		if len(tokens) > 1 {
			msg = strings.Join(tokens[1:], " ")
		}
		return newEvent(SayValid, Args{ArgMessage: msg})
	},
}

// HelpCommand lists the commands available in the current state.
var HelpCommand = Definition{
	Keys: []string{"help"},
	Parse: func([]string) Event {
		return newEvent(HelpValid, nil)
	},
}

// AnonymousCommands returns the commands available before login, in help order.
func AnonymousCommands() []Definition {
	return []Definition{RegisterCommand, ConnectCommand, HelpCommand}
}

// AuthenticatedCommands returns the commands available after login, in help order.
func AuthenticatedCommands() []Definition {
	return []Definition{DirectionCommand, LogoutCommand, HelpCommand, LookCommand, SayCommand}
}
