package command

// EventKind identifies the typed outcome of parsing one command line.
type EventKind int

// The closed set of events the parser can produce.
const (
	InvalidCommand EventKind = iota
	RegisterValid
	RegisterInvalid
	LoginValid
	LoginInvalid
	LogoutValid
	MoveValid
	LookValid
	SayValid
	HelpValid
)

var eventNames = map[EventKind]string{
	InvalidCommand:  "invalid_command",
	RegisterValid:   "register_valid",
	RegisterInvalid: "register_invalid",
	LoginValid:      "login_valid",
	LoginInvalid:    "login_invalid",
	LogoutValid:     "logout_valid",
	MoveValid:       "move_valid",
	LookValid:       "look_valid",
	SayValid:        "say_valid",
	HelpValid:       "help_valid",
}

// String returns the snake_case event name used in logs.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Argument names carried by events.
const (
	ArgUsername  = "username"
	ArgPassword  = "password"
	ArgDirection = "direction"
	ArgMessage   = "message"
)

// Args holds the named string arguments of an event.
type Args map[string]string

// Event is a parsed, validated command.
type Event struct {
	Kind EventKind
	Args Args
}

// newEvent returns an Event whose Args is never nil.
func newEvent(kind EventKind, args Args) Event {
	if args == nil {
		args = Args{}
	}
	return Event{Kind: kind, Args: args}
}
