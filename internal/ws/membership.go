package ws

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/manpreetbhatti/sketchboard/internal/room"
)

// Join puts the peer in roomID under username. Switching rooms leaves the
// old one first; joining the room the peer is already in only replays the
// room state.
func (h *Hub) Join(p *Peer, roomID, username string) error {
	roomID = strings.TrimSpace(roomID)
	username = strings.TrimSpace(username)
	if err := h.validateJoin(roomID, username); err != nil {
		return err
	}

	if p.assoc.Active() && p.assoc.RoomID != roomID {
		h.Leave(p)
	}
	if !p.assoc.Active() {
		p.assoc = Association{RoomID: roomID, Username: username}
	}

	for {
		r, created := h.store.GetOrCreate(roomID)
		if created {
			h.journal.RoomOpened(roomID, r.Lifetime, r.Stats().OpenedAt)
			log.Info().Str("room", roomID).Msg("room created")
		}

		added, err := r.Join(p.Session, p.assoc.Username)
		if errors.Is(err, room.ErrRoomClosed) {
			// Emptied and dropped between lookup and join
			continue
		}
		if err != nil {
			return err
		}

		if added {
			log.Info().
				Str("room", roomID).
				Str("session", p.ID()).
				Str("username", p.assoc.Username).
				Int("members", r.MemberCount()).
				Msg("player joined")
		}
		return nil
	}
}

// Leave removes the peer from its room, notifying the others, and drops the
// room once it is empty. A peer outside any room is left alone.
func (h *Hub) Leave(p *Peer) {
	assoc := p.assoc
	if !assoc.Active() {
		return
	}
	p.assoc = Association{}

	r, ok := h.store.Get(assoc.RoomID)
	if !ok {
		return
	}

	remaining, err := r.Leave(p.ID())
	if err != nil && !errors.Is(err, room.ErrNotMember) {
		log.Warn().Err(err).Str("room", assoc.RoomID).Str("session", p.ID()).Msg("leave notification failed")
	}
	log.Info().
		Str("room", assoc.RoomID).
		Str("session", p.ID()).
		Str("username", assoc.Username).
		Int("remaining", remaining).
		Msg("player left")

	if closed, ok := h.store.RemoveIfEmpty(assoc.RoomID); ok {
		stats := closed.Stats()
		h.journal.RoomClosed(assoc.RoomID, closed.Lifetime, stats, time.Now())
		log.Info().
			Str("room", assoc.RoomID).
			Int("strokes", stats.StrokesDrawn).
			Int("peak_members", stats.PeakMembers).
			Msg("room closed (empty)")
	}
}

func (h *Hub) validateJoin(roomID, username string) error {
	switch {
	case roomID == "":
		return ErrEmptyRoomID
	case username == "":
		return ErrEmptyUsername
	case h.opts.MaxRoomIDLength > 0 && utf8.RuneCountInString(roomID) > h.opts.MaxRoomIDLength:
		return ErrRoomIDTooLong
	case h.opts.MaxUsernameLength > 0 && utf8.RuneCountInString(username) > h.opts.MaxUsernameLength:
		return ErrUsernameTooLong
	}
	return nil
}
