package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableCommands(t *testing.T) {
	assert.Equal(t, []string{"register", "connect", "help"}, AvailableCommands(false))
	assert.Equal(t,
		[]string{"north|south|east|west|n|s|e|w", "quit|exit|logout", "help", "look|l", "say"},
		AvailableCommands(true),
	)
}

func TestDefinition_IsCommand(t *testing.T) {
	assert.True(t, LogoutCommand.IsCommand("exit"))
	assert.True(t, LogoutCommand.IsCommand("EXIT"))
	assert.False(t, LogoutCommand.IsCommand("exi"))
	assert.False(t, LogoutCommand.IsCommand(""))
}

func TestNewRegistry_RejectsMalformed(t *testing.T) {
	_, err := NewRegistry([]Definition{{Keys: nil, Parse: HelpCommand.Parse}}, AuthenticatedCommands())
	assert.Error(t, err)

	_, err = NewRegistry(AnonymousCommands(), []Definition{{Keys: []string{"x"}}})
	assert.Error(t, err)

	_, err = NewRegistry(nil, AuthenticatedCommands())
	assert.Error(t, err)
}

func TestRegistry_FirstDefinitionWins(t *testing.T) {
	shadow := Definition{
		Keys:  []string{"help"},
		Parse: func([]string) Event { return newEvent(LookValid, nil) },
	}
	r, err := NewRegistry([]Definition{shadow, HelpCommand}, AuthenticatedCommands())
	require.NoError(t, err)

	assert.Equal(t, LookValid, r.ParseCommand("help", false).Kind)
	assert.Equal(t, []string{"help", "help"}, r.AvailableCommands(false))
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "move_valid", MoveValid.String())
	assert.Equal(t, "invalid_command", InvalidCommand.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
