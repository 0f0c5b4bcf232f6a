package session

import (
	"fmt"
	"html"
	"strings"

	"github.com/cory-johannsen/k6mud/internal/game/world"
)

// Fixed reply texts.
const (
	replyUsernameTaken   = "Username already taken. Please choose a different username"
	replyRegisterUsage   = "Usage: register <username> <password>"
	replyConnectUsage    = "Usage: connect <username> <password>"
	replyUnknownUser     = "Wrong username or password"
	replyBadCredential   = "Cannot authenticate user"
	replyLoggedOut       = "You have been logged out"
	replyInternalFailure = "An internal error occurred. Please try again."
)

func registeredReply(username string) string {
	return fmt.Sprintf("<b>%s</b> user has been created. Please login using the same credentials.", username)
}

func alreadyConnectedReply(username string) string {
	return fmt.Sprintf("User <b>%s</b> is already connected", username)
}

func loggedInReply(username string) string {
	return "User has been logged in : " + username
}

func joinedMessage(username string) string {
	return fmt.Sprintf("<b>%s</b> has joined the game", username)
}

func leftMessage(username string) string {
	return fmt.Sprintf("<b>%s</b> has left the game", username)
}

func sayMessage(username, text string) string {
	return fmt.Sprintf("<b>%s</b> says <i>%s</i>", username, text)
}

func helpReply(commands []string) string {
	return fmt.Sprintf("Available commands are: <b>%s</b>", strings.Join(commands, ", "))
}

// invalidCommandReply echoes line with its markup escaped so client input
// cannot inject tags into the reply.
func invalidCommandReply(line string) string {
	return fmt.Sprintf(`Command <b>%s</b> is not available. Type "help" for help.`, html.EscapeString(line))
}

// roomView is the short room rendering sent on login.
func roomView(room *world.Room) string {
	return fmt.Sprintf("<b># %s</b><br><br>%s", room.Name, room.Description)
}

// moveView is the room rendering sent after a move.
func moveView(room *world.Room) string {
	return "<br>" + roomView(room)
}

// lookView renders a room with its occupants and exits.
func lookView(room *world.Room, players, exits []string) string {
	return fmt.Sprintf("<br><b>%s</b><br>%s<br><b>Players</b>: %s<br><b>Exits</b>: %s",
		room.Name, room.Description, strings.Join(players, " "), strings.Join(exits, ", "))
}
