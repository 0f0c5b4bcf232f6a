// Package handlers connects the frontend acceptors to the session layer.
package handlers

import (
	"context"
	"errors"

	"github.com/cory-johannsen/k6mud/internal/broadcast"
	"github.com/cory-johannsen/k6mud/internal/frontend/telnet"
	"github.com/cory-johannsen/k6mud/internal/frontend/ws"
	"github.com/cory-johannsen/k6mud/internal/game/session"
)

// Banner greets telnet clients before the first prompt.
const Banner = "<b>Welcome to k6mud.</b> Type <i>help</i> for a list of commands."

// GameHandler runs a session unit for every accepted connection on either
// frontend.
type GameHandler struct {
	deps     session.Deps
	fanout   broadcast.Subscriber
	registry *session.Registry
}

// NewGameHandler creates a handler sharing deps, fanout and registry across
// all connections.
//
// Precondition: fanout must be non-nil; registry may be nil.
func NewGameHandler(deps session.Deps, fanout broadcast.Subscriber, registry *session.Registry) (*GameHandler, error) {
	if fanout == nil {
		return nil, errors.New("game handler: fanout is required")
	}
	return &GameHandler{deps: deps, fanout: fanout, registry: registry}, nil
}

// HandleSession serves a telnet connection.
func (h *GameHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	if err := conn.Send(Banner); err != nil {
		return err
	}
	return h.run(ctx, conn, conn.RemoteAddr().String())
}

// HandleWebSocket serves a WebSocket connection.
func (h *GameHandler) HandleWebSocket(ctx context.Context, conn *ws.Conn) error {
	return h.run(ctx, conn, conn.RemoteAddr())
}

func (h *GameHandler) run(ctx context.Context, conn session.Conn, remoteAddr string) error {
	unit, err := session.NewUnit(h.deps, h.fanout, h.registry, conn, remoteAddr)
	if err != nil {
		return err
	}
	return unit.Run(ctx)
}
