package room

import (
	"github.com/rs/zerolog/log"
)

// broadcast hands frame to every member except the session named by except,
// in join order. Sessions queue without blocking, so one slow peer never
// holds up the others; a failed send is logged and dropped. Callers hold mu.
func (r *Room) broadcast(frame []byte, except string) int {
	delivered := 0
	for _, id := range r.order {
		if id == except {
			continue
		}
		if r.sendTo(r.members[id].session, frame) {
			delivered++
		}
	}
	return delivered
}

func (r *Room) sendTo(s Session, frame []byte) bool {
	if err := s.Send(frame); err != nil {
		log.Warn().
			Err(err).
			Str("room", r.ID).
			Str("session", s.ID()).
			Msg("dropped frame")
		return false
	}
	return true
}
