package ws

import (
	"errors"
	"fmt"

	"github.com/manpreetbhatti/sketchboard/internal/protocol"
)

var (
	ErrEmptyRoomID     = errors.New("roomId is required")
	ErrEmptyUsername   = errors.New("username is required")
	ErrRoomIDTooLong   = errors.New("roomId is too long")
	ErrUsernameTooLong = errors.New("username is too long")
	ErrNotInRoom       = errors.New("session has not joined a room")
	ErrSlowConsumer    = errors.New("send buffer full")
	ErrSessionClosed   = errors.New("session closed")
)

type UnknownEventError struct {
	Event protocol.Event
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Event)
}
