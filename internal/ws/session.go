package ws

// Session is one connected client's transport
type Session interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Association is the room a session currently belongs to
type Association struct {
	RoomID   string
	Username string
}

func (a Association) Active() bool {
	return a.RoomID != ""
}

// Peer pairs a session with its association. Only the hub changes the
// association, and only from the session's own read loop, so Peer needs no
// locking.
type Peer struct {
	Session
	assoc Association
}

func NewPeer(s Session) *Peer {
	return &Peer{Session: s}
}

func (p *Peer) Association() Association {
	return p.assoc
}
