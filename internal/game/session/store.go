// Package session runs one state machine per connection: it parses command
// lines, advances the anonymous/authenticated lifecycle, persists location and
// presence, and filters broadcast deliveries for its own connection.
package session

import (
	"context"

	"github.com/cory-johannsen/k6mud/internal/game/player"
)

// ProfileStore is the durable player profile collaborator.
//
// MarkConnected must flip the connected flag atomically and return
// player.ErrAlreadyConnected when it is already set; this is what keeps a
// username to at most one authenticated session.
type ProfileStore interface {
	Create(ctx context.Context, username, password string, locationRoomID int) (player.Profile, error)
	GetByUsername(ctx context.Context, username string) (player.Profile, error)
	MarkConnected(ctx context.Context, username string) error
	MarkDisconnected(ctx context.Context, username string) error
	UpdateLocation(ctx context.Context, username string, roomID int) error
	ConnectedInRoom(ctx context.Context, roomID int) ([]string, error)
}
