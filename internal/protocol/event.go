package protocol

import (
	"encoding/json"
	"fmt"
)

// Broadcast event types.
const (
	TypeBroadcast = "message.broadcast"
	TypeLocation  = "message.location"
)

// BroadcastEvent is the fan-out wire format shared by every server process.
type BroadcastEvent struct {
	Type     string `json:"type"`
	Location int    `json:"location"`
	Message  string `json:"message"`
}

// EncodeEvent serializes a broadcast event.
func EncodeEvent(ev BroadcastEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a broadcast event.
//
// Postcondition: Returns an error for invalid JSON or an unknown type.
func DecodeEvent(data []byte) (BroadcastEvent, error) {
	var ev BroadcastEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BroadcastEvent{}, fmt.Errorf("decoding broadcast event: %w", err)
	}
	switch ev.Type {
	case TypeBroadcast, TypeLocation:
		return ev, nil
	default:
		return BroadcastEvent{}, fmt.Errorf("unknown broadcast event type %q", ev.Type)
	}
}
