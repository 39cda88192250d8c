package room

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manpreetbhatti/sketchboard/internal/protocol"
)

var (
	// Returned once the store has dropped the room; callers fetch a fresh one
	ErrRoomClosed = errors.New("room closed")
	ErrNotMember  = errors.New("session is not a member of the room")
)

// Session is the send side of a connected client as the room sees it
type Session interface {
	ID() string
	Send(frame []byte) error
}

type member struct {
	session Session
	player  protocol.Player
}

// Stats are lifetime counters for one room
type Stats struct {
	OpenedAt     time.Time
	PeakMembers  int
	StrokesDrawn int
	Clears       int
	Evicted      int
}

// A shared canvas and the sessions drawing on it. Every mutation and the
// fan-out it triggers run under mu, so a room's events are totally ordered.
type Room struct {
	ID string
	// Distinguishes this room from earlier and later rooms with the same ID
	Lifetime string

	mu         sync.Mutex
	order      []string
	members    map[string]*member
	history    []protocol.DrawStroke
	maxHistory int
	closed     bool
	stats      Stats
}

// Creates an empty room. maxHistory <= 0 leaves the history unbounded.
func New(id string, maxHistory int) *Room {
	return &Room{
		ID:         id,
		Lifetime:   uuid.NewString(),
		members:    make(map[string]*member),
		history:    make([]protocol.DrawStroke, 0),
		maxHistory: maxHistory,
		stats:      Stats{OpenedAt: time.Now()},
	}
}

// Join adds the session as a player, tells the other members and replays the
// room to the joiner. A repeated join from a member only replays the state.
// It reports whether the session was newly added.
//
// The replayed players list leaves out the joiner: clients render their own
// player locally and list only the others, so the first joiner gets an empty
// list.
func (r *Room) Join(s Session, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrRoomClosed
	}

	id := s.ID()
	_, exists := r.members[id]
	if !exists {
		r.members[id] = &member{
			session: s,
			player:  protocol.Player{Username: username},
		}
		r.order = append(r.order, id)
		if len(r.order) > r.stats.PeakMembers {
			r.stats.PeakMembers = len(r.order)
		}

		joined, err := protocol.Encode(protocol.EventPlayerJoined, protocol.PlayerJoined{ID: id, Username: username})
		if err != nil {
			return true, err
		}
		r.broadcast(joined, id)
	}

	state, err := protocol.Encode(protocol.EventRoomState, r.stateLocked(id))
	if err != nil {
		return !exists, err
	}
	r.sendTo(r.members[id].session, state)

	return !exists, nil
}

// Leave notifies the other members and removes the session in one step.
// Returns the number of members left behind.
func (r *Room) Leave(sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sessionID]; !ok {
		return len(r.order), ErrNotMember
	}

	left, err := protocol.Encode(protocol.EventPlayerLeft, sessionID)
	if err == nil {
		r.broadcast(left, sessionID)
	}

	delete(r.members, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return len(r.order), err
}

// Draw appends the stroke to the history and relays it to everyone but the
// sender.
func (r *Room) Draw(sessionID string, stroke protocol.DrawStroke) error {
	frame, err := protocol.Encode(protocol.EventDraw, stroke)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.members[sessionID]; !ok {
		return ErrNotMember
	}

	r.history = append(r.history, stroke)
	r.stats.StrokesDrawn++
	if r.maxHistory > 0 && len(r.history) > r.maxHistory {
		overflow := len(r.history) - r.maxHistory
		r.history = r.history[overflow:]
		r.stats.Evicted += overflow
	}

	r.broadcast(frame, sessionID)
	return nil
}

// Clear truncates the history and tells everyone but the sender
func (r *Room) Clear(sessionID string) error {
	frame, err := protocol.Encode(protocol.EventClearCanvas, nil)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.members[sessionID]; !ok {
		return ErrNotMember
	}

	r.history = make([]protocol.DrawStroke, 0)
	r.stats.Clears++

	r.broadcast(frame, sessionID)
	return nil
}

// Compact rewrites the history with fn. fn must keep the visual result of
// replaying the history unchanged. Returns the lengths before and after.
func (r *Room) Compact(fn func([]protocol.DrawStroke) []protocol.DrawStroke) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.history)
	r.history = fn(r.history)
	return before, len(r.history)
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Room) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func (r *Room) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Snapshot is a copy of a room's state at one instant
type Snapshot struct {
	ID      string
	Players []protocol.PlayerEntry
	History []protocol.DrawStroke
	Stats   Stats
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.stateLocked("")
	return Snapshot{
		ID:      r.ID,
		Players: state.Players,
		History: state.DrawingHistory,
		Stats:   r.stats,
	}
}

// Copies members in join order, leaving out the session named by except.
// Callers hold mu.
func (r *Room) stateLocked(except string) protocol.RoomState {
	players := make([]protocol.PlayerEntry, 0, len(r.order))
	for _, id := range r.order {
		if id == except {
			continue
		}
		players = append(players, protocol.PlayerEntry{SessionID: id, Player: r.members[id].player})
	}

	history := make([]protocol.DrawStroke, len(r.history))
	copy(history, r.history)

	return protocol.RoomState{Players: players, DrawingHistory: history}
}
