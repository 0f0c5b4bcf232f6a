package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/broadcast"
	"github.com/cory-johannsen/k6mud/internal/game/command"
	"github.com/cory-johannsen/k6mud/internal/game/player"
	"github.com/cory-johannsen/k6mud/internal/game/world"
)

const releaseAttempts = 2

// State is the authentication state of a session.
type State int

const (
	// Anonymous sessions may only register, connect or ask for help.
	Anonymous State = iota
	// Authenticated sessions are bound to a profile and a room.
	Authenticated
)

// String returns the state name used in logs.
func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Sender delivers reply text to the engine's own connection.
type Sender interface {
	Send(text string) error
}

// Deps are the collaborators shared by every engine.
type Deps struct {
	World     *world.Graph
	Profiles  ProfileStore
	Broadcast broadcast.Publisher
	// Commands defaults to command.DefaultRegistry when nil.
	Commands *command.Registry
	Logger   *zap.Logger
}

func (d Deps) validate() error {
	switch {
	case d.World == nil:
		return errors.New("session deps: world is required")
	case d.Profiles == nil:
		return errors.New("session deps: profile store is required")
	case d.Broadcast == nil:
		return errors.New("session deps: broadcast publisher is required")
	case d.Logger == nil:
		return errors.New("session deps: logger is required")
	}
	return nil
}

// Engine is the per-connection session state machine. It is not safe for
// concurrent use; a Unit serializes every call.
type Engine struct {
	deps   Deps
	out    Sender
	logger *zap.Logger

	state    State
	username string
	roomID   int
	profile  *player.Profile
}

// NewEngine creates an Anonymous engine replying through out.
//
// Precondition: deps.World, deps.Profiles, deps.Broadcast and deps.Logger are non-nil.
// Postcondition: Returns an engine in the Anonymous state, or an error naming the missing dependency.
func NewEngine(deps Deps, out Sender) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("session: sender is required")
	}
	if deps.Commands == nil {
		deps.Commands = command.DefaultRegistry()
	}
	return &Engine{deps: deps, out: out, logger: deps.Logger}, nil
}

// State returns the current authentication state.
func (e *Engine) State() State { return e.state }

// Authenticated reports whether the session is bound to a profile.
func (e *Engine) Authenticated() bool { return e.state == Authenticated }

// Username returns the authenticated username, or "" when anonymous.
func (e *Engine) Username() string { return e.username }

// RoomID returns the current room, or 0 when anonymous.
func (e *Engine) RoomID() int { return e.roomID }

// HandleLine parses one command line and runs its handler.
//
// Postcondition: Exactly the replies of the matching handler have been sent.
// A non-nil error means the reply could not be written to the connection;
// store and broadcast failures are reported to the caller and logged instead.
func (e *Engine) HandleLine(ctx context.Context, line string) error {
	ev := e.deps.Commands.ParseCommand(line, e.Authenticated())
	e.logger.Debug("command parsed",
		zap.Stringer("event", ev.Kind),
		zap.Stringer("state", e.state),
	)

	switch ev.Kind {
	case command.RegisterValid:
		return e.register(ctx, ev.Args[command.ArgUsername], ev.Args[command.ArgPassword])
	case command.RegisterInvalid:
		return e.reply(replyRegisterUsage)
	case command.LoginValid:
		return e.login(ctx, ev.Args[command.ArgUsername], ev.Args[command.ArgPassword])
	case command.LoginInvalid:
		return e.reply(replyConnectUsage)
	case command.LogoutValid:
		return e.logout(ctx, true)
	case command.MoveValid:
		return e.move(ctx, ev.Args[command.ArgDirection])
	case command.LookValid:
		return e.look(ctx)
	case command.SayValid:
		return e.say(ctx, ev.Args[command.ArgMessage])
	case command.HelpValid:
		return e.reply(helpReply(e.deps.Commands.AvailableCommands(e.Authenticated())))
	default:
		return e.reply(invalidCommandReply(line))
	}
}

// OnDisconnect logs out an authenticated session whose connection closed.
// Anonymous sessions need no cleanup.
func (e *Engine) OnDisconnect(ctx context.Context, code int) {
	e.logger.Info("connection closed",
		zap.Int("close_code", code),
		zap.Stringer("state", e.state),
	)
	if !e.Authenticated() {
		return
	}
	// The connection is gone; only the side effects matter.
	_ = e.logout(ctx, false)
}

// Deliver decides whether a fan-out message reaches this session.
//
// Postcondition: Returns the text and true for global messages when
// authenticated, and for location messages when authenticated in that room.
func (e *Engine) Deliver(msg broadcast.Message) (string, bool) {
	if !e.Authenticated() {
		return "", false
	}
	if msg.Kind == broadcast.Location && msg.Location != e.roomID {
		return "", false
	}
	return msg.Text, true
}

func (e *Engine) register(ctx context.Context, username, password string) error {
	_, err := e.deps.Profiles.Create(ctx, username, password, e.deps.World.DefaultRoomID())
	switch {
	case errors.Is(err, player.ErrProfileExists):
		return e.reply(replyUsernameTaken)
	case err != nil:
		return e.internalError("creating profile", err)
	}
	e.logger.Info("profile registered", zap.String("username", username))
	return e.reply(registeredReply(username))
}

func (e *Engine) login(ctx context.Context, username, password string) error {
	p, err := e.deps.Profiles.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, player.ErrProfileNotFound):
		e.logger.Warn("login for unknown user", zap.String("username", username))
		return e.reply(replyUnknownUser)
	case err != nil:
		return e.internalError("loading profile", err)
	}
	if !p.Authenticate(password) {
		e.logger.Warn("login with bad credential", zap.String("username", username))
		return e.reply(replyBadCredential)
	}

	room, ok := e.deps.World.Room(p.LocationRoomID)
	if !ok {
		return e.internalError("resolving stored location",
			fmt.Errorf("profile %q references unknown room %d", username, p.LocationRoomID))
	}

	if err := e.deps.Profiles.MarkConnected(ctx, username); err != nil {
		if errors.Is(err, player.ErrAlreadyConnected) {
			e.logger.Warn("rejecting second login", zap.String("username", username))
			return e.reply(alreadyConnectedReply(username))
		}
		return e.internalError("marking connected", err)
	}

	p.Connected = true
	e.profile = &p
	e.username = p.Username
	e.roomID = room.ID
	e.state = Authenticated
	e.logger = e.deps.Logger.With(zap.String("username", p.Username))
	e.logger.Info("user logged in", zap.Int("room", room.ID))

	if err := e.reply(loggedInReply(p.Username)); err != nil {
		return err
	}
	if err := e.reply(roomView(room)); err != nil {
		return err
	}
	e.publish(ctx, broadcast.GlobalMessage(joinedMessage(p.Username)))
	return nil
}

// logout returns the session to Anonymous and clears the persisted presence.
func (e *Engine) logout(ctx context.Context, reply bool) error {
	username := e.username
	e.publish(ctx, broadcast.GlobalMessage(leftMessage(username)))

	e.state = Anonymous
	e.username = ""
	e.roomID = 0
	e.profile = nil
	e.logger = e.deps.Logger

	if err := e.releasePresence(ctx, username); err != nil {
		e.logger.Error("clearing presence", zap.String("username", username), zap.Error(err))
		if !reply {
			return nil
		}
		return e.reply(replyInternalFailure)
	}
	e.logger.Info("user logged out", zap.String("username", username))

	if !reply {
		return nil
	}
	return e.reply(replyLoggedOut)
}

// releasePresence clears the connected flag, trying once more on failure.
// A flag that still cannot be cleared is left to the PresenceSweeper.
func (e *Engine) releasePresence(ctx context.Context, username string) error {
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		err = e.deps.Profiles.MarkDisconnected(ctx, username)
		if err == nil || errors.Is(err, player.ErrProfileNotFound) || ctx.Err() != nil {
			break
		}
	}
	if errors.Is(err, player.ErrProfileNotFound) {
		return nil
	}
	return err
}

func (e *Engine) move(ctx context.Context, direction string) error {
	dest := e.deps.World.Move(e.roomID, direction)
	room, ok := e.deps.World.Room(dest)
	if !ok {
		return e.internalError("resolving destination",
			fmt.Errorf("room %d not found moving %s from %d", dest, direction, e.roomID))
	}
	if err := e.deps.Profiles.UpdateLocation(ctx, e.username, dest); err != nil {
		return e.internalError("persisting location", err)
	}
	if dest != e.roomID {
		e.logger.Debug("moved", zap.Int("from", e.roomID), zap.Int("to", dest), zap.String("direction", direction))
	}
	e.roomID = dest
	e.profile.LocationRoomID = dest
	return e.reply(moveView(room))
}

func (e *Engine) look(ctx context.Context) error {
	room, ok := e.deps.World.Room(e.roomID)
	if !ok {
		return e.internalError("resolving current room", fmt.Errorf("room %d not found", e.roomID))
	}
	players, err := e.deps.Profiles.ConnectedInRoom(ctx, e.roomID)
	if err != nil {
		return e.internalError("listing players", err)
	}
	return e.reply(lookView(room, players, e.deps.World.PrintableExits(room)))
}

func (e *Engine) say(ctx context.Context, text string) error {
	err := e.deps.Broadcast.Publish(ctx, broadcast.LocationMessage(e.roomID, sayMessage(e.username, text)))
	if err != nil {
		return e.internalError("publishing say", err)
	}
	return nil
}

// publish sends a presence announcement; failures are logged, not reported.
func (e *Engine) publish(ctx context.Context, msg broadcast.Message) {
	if err := e.deps.Broadcast.Publish(ctx, msg); err != nil {
		e.logger.Error("publishing announcement", zap.Stringer("kind", msg.Kind), zap.Error(err))
	}
}

func (e *Engine) internalError(op string, err error) error {
	e.logger.Error(op, zap.Error(err))
	return e.reply(replyInternalFailure)
}

func (e *Engine) reply(text string) error {
	if err := e.out.Send(text); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}
