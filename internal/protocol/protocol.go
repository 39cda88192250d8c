package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Names an event carried in the envelope
type Event string

const (
	// Client asks to join a room
	EventJoinRoom Event = "joinRoom"

	// Client leaves its room without closing the connection
	EventLeaveRoom Event = "leaveRoom"

	// Sent to the other members when someone joins
	EventPlayerJoined Event = "playerJoined"

	// Sent only to the joining client: members plus full drawing history
	EventRoomState Event = "roomState"

	// Sent to the other members when someone leaves or disconnects
	EventPlayerLeft Event = "playerLeft"

	// One line segment, client -> server and server -> other members
	EventDraw Event = "draw"

	// History truncation, client -> server and server -> other members
	EventClearCanvas Event = "clearCanvas"

	// Sent only to the session whose input was rejected
	EventError Event = "error"
)

var (
	ErrEmptyFrame   = errors.New("empty frame")
	ErrMissingEvent = errors.New("missing event name")
)

// Envelope is the JSON frame exchanged over the socket
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload into an envelope. A nil payload produces an envelope
// without data, as clearCanvas and leaveRoom use.
func Encode(event Event, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a raw frame into its envelope
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if len(frame) == 0 {
		return env, ErrEmptyFrame
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return env, ErrMissingEvent
	}
	return env, nil
}

// Unmarshals the envelope data into v
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: missing payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
