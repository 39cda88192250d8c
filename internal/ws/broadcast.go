package ws

import (
	"fmt"

	"github.com/manpreetbhatti/sketchboard/internal/protocol"
	"github.com/manpreetbhatti/sketchboard/internal/room"
)

// Draw records the stroke in the peer's room and relays it to the other
// members. Strokes from a peer outside any room are dropped.
func (h *Hub) Draw(p *Peer, stroke protocol.DrawStroke) error {
	r, err := h.currentRoom(p)
	if err != nil {
		return err
	}
	if err := r.Draw(p.ID(), stroke); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInRoom, err)
	}
	return nil
}

// ClearCanvas empties the peer's room history and tells the other members
func (h *Hub) ClearCanvas(p *Peer) error {
	r, err := h.currentRoom(p)
	if err != nil {
		return err
	}
	if err := r.Clear(p.ID()); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInRoom, err)
	}
	return nil
}

func (h *Hub) currentRoom(p *Peer) (*room.Room, error) {
	if !p.assoc.Active() {
		return nil, ErrNotInRoom
	}
	r, ok := h.store.Get(p.assoc.RoomID)
	if !ok {
		return nil, ErrNotInRoom
	}
	return r, nil
}
