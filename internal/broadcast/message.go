// Package broadcast fans chat and presence messages out to every session unit,
// either in-process or across server processes via Redis pub/sub.
package broadcast

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/k6mud/internal/protocol"
)

// Kind distinguishes server-wide messages from room-scoped ones.
type Kind int

const (
	// Global messages reach every authenticated session.
	Global Kind = iota
	// Location messages reach authenticated sessions in Message.Location only.
	Location
)

// String returns the kind's wire type name.
func (k Kind) String() string {
	if k == Location {
		return protocol.TypeLocation
	}
	return protocol.TypeBroadcast
}

// Message is one fan-out delivery.
type Message struct {
	Kind     Kind
	Location int
	Text     string
}

// GlobalMessage builds a server-wide message.
func GlobalMessage(text string) Message {
	return Message{Kind: Global, Text: text}
}

// LocationMessage builds a message scoped to roomID.
func LocationMessage(roomID int, text string) Message {
	return Message{Kind: Location, Location: roomID, Text: text}
}

// Publisher sends a message to every subscriber.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Subscriber opens a stream of published messages.
type Subscriber interface {
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Fanout is a Publisher and Subscriber pair sharing one transport.
type Fanout interface {
	Publisher
	Subscriber
	Close() error
}

// Subscription delivers published messages on C until Close is called.
type Subscription struct {
	// C is closed after Close returns.
	C     <-chan Message
	close func()
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
	}
}

func toWire(msg Message) protocol.BroadcastEvent {
	return protocol.BroadcastEvent{Type: msg.Kind.String(), Location: msg.Location, Message: msg.Text}
}

func fromWire(ev protocol.BroadcastEvent) (Message, error) {
	switch ev.Type {
	case protocol.TypeBroadcast:
		return GlobalMessage(ev.Message), nil
	case protocol.TypeLocation:
		return LocationMessage(ev.Location, ev.Message), nil
	default:
		return Message{}, fmt.Errorf("unknown broadcast type %q", ev.Type)
	}
}
