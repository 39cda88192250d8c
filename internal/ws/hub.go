package ws

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/manpreetbhatti/sketchboard/internal/protocol"
	"github.com/manpreetbhatti/sketchboard/internal/room"
)

// Journal receives room lifecycle events. Implementations must not block.
// Events for one room lifetime may arrive out of order; lifetime ties a
// close to its open.
type Journal interface {
	RoomOpened(roomID, lifetime string, at time.Time)
	RoomClosed(roomID, lifetime string, stats room.Stats, at time.Time)
}

type nopJournal struct{}

func (nopJournal) RoomOpened(string, string, time.Time)             {}
func (nopJournal) RoomClosed(string, string, room.Stats, time.Time) {}

type Options struct {
	MaxRoomIDLength   int
	MaxUsernameLength int
}

func DefaultOptions() Options {
	return Options{
		MaxRoomIDLength:   32,
		MaxUsernameLength: 20,
	}
}

type handlerFunc func(p *Peer, env protocol.Envelope) error

// Hub routes events from connected sessions to their rooms
type Hub struct {
	store    *room.Store
	journal  Journal
	opts     Options
	handlers map[protocol.Event]handlerFunc
	sessions atomic.Int64
}

// NewHub builds a hub over store. journal may be nil.
func NewHub(store *room.Store, journal Journal, opts Options) *Hub {
	if journal == nil {
		journal = nopJournal{}
	}

	h := &Hub{
		store:   store,
		journal: journal,
		opts:    opts,
	}
	h.handlers = map[protocol.Event]handlerFunc{
		protocol.EventJoinRoom:    h.handleJoin,
		protocol.EventLeaveRoom:   h.handleLeave,
		protocol.EventDraw:        h.handleDraw,
		protocol.EventClearCanvas: h.handleClear,
	}
	return h
}

// Connect registers a new session and returns its peer
func (h *Hub) Connect(s Session) *Peer {
	count := h.sessions.Add(1)
	log.Debug().Str("session", s.ID()).Int64("sessions", count).Msg("session connected")
	return NewPeer(s)
}

// Disconnect runs the leave protocol for a session that went away. It is
// never retried and never fails.
func (h *Hub) Disconnect(p *Peer) {
	h.Leave(p)
	count := h.sessions.Add(-1)
	log.Debug().Str("session", p.ID()).Int64("sessions", count).Msg("session disconnected")
}

// SessionCount is the number of connected sessions, joined or not
func (h *Hub) SessionCount() int {
	return int(h.sessions.Load())
}

// Dispatch decodes one inbound frame and runs its handler. Rejected input is
// reported to the sending session only.
func (h *Hub) Dispatch(p *Peer, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		h.reject(p, err)
		return
	}

	handler, ok := h.handlers[env.Event]
	if !ok {
		h.reject(p, &UnknownEventError{Event: env.Event})
		return
	}

	if err := handler(p, env); err != nil {
		if errors.Is(err, ErrNotInRoom) {
			log.Debug().Str("session", p.ID()).Str("event", string(env.Event)).Msg("ignored event outside a room")
			return
		}
		h.reject(p, err)
	}
}

func (h *Hub) reject(p *Peer, cause error) {
	log.Warn().Err(cause).Str("session", p.ID()).Msg("rejected input")

	frame, err := protocol.Encode(protocol.EventError, protocol.ErrorMessage{Message: cause.Error()})
	if err != nil {
		return
	}
	_ = p.Send(frame)
}

func (h *Hub) handleJoin(p *Peer, env protocol.Envelope) error {
	var req protocol.JoinRoom
	if err := env.Bind(&req); err != nil {
		return err
	}
	return h.Join(p, req.RoomID, req.Username)
}

func (h *Hub) handleLeave(p *Peer, _ protocol.Envelope) error {
	if !p.assoc.Active() {
		return ErrNotInRoom
	}
	h.Leave(p)
	return nil
}

func (h *Hub) handleDraw(p *Peer, env protocol.Envelope) error {
	var stroke protocol.DrawStroke
	if err := env.Bind(&stroke); err != nil {
		return err
	}
	return h.Draw(p, stroke)
}

func (h *Hub) handleClear(p *Peer, _ protocol.Envelope) error {
	return h.ClearCanvas(p)
}
