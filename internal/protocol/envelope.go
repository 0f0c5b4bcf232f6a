// Package protocol defines the JSON wire formats exchanged with WebSocket
// clients and carried over the broadcast fan-out.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when an inbound frame is not a valid envelope.
var ErrMalformedFrame = errors.New("malformed frame")

// Envelope is the single-field object wrapping every client frame in both directions.
type Envelope struct {
	Message *string `json:"message"`
}

// EncodeEnvelope wraps text as {"message": text}.
func EncodeEnvelope(text string) ([]byte, error) {
	return json.Marshal(Envelope{Message: &text})
}

// DecodeEnvelope extracts the message text from an inbound frame.
//
// Postcondition: Returns the message text, or an error wrapping
// ErrMalformedFrame when data is not JSON or lacks a string "message" field.
func DecodeEnvelope(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Message == nil {
		return "", fmt.Errorf("%w: missing message field", ErrMalformedFrame)
	}
	return *env.Message, nil
}
