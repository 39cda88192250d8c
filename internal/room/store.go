package room

import (
	"sort"
	"sync"
)

// Store is the registry of live rooms. A room is present exactly while it
// has members. Lock order is store before room.
type Store struct {
	rooms      map[string]*Room
	maxHistory int
	mu         sync.RWMutex
}

func NewStore(maxHistory int) *Store {
	return &Store{
		rooms:      make(map[string]*Room),
		maxHistory: maxHistory,
	}
}

// GetOrCreate returns the room with the given ID, creating an empty one if
// needed. The bool reports whether it was created.
func (s *Store) GetOrCreate(id string) (*Room, bool) {
	s.mu.RLock()
	r, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return r, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[id]; ok {
		return r, false
	}

	r = New(id, s.maxHistory)
	s.rooms[id] = r
	return r, true
}

func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// RemoveIfEmpty drops the room when it has no members left and marks it
// closed, so a join racing with the removal retries on a fresh room.
// Returns the removed room.
func (s *Store) RemoveIfEmpty(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) > 0 {
		return nil, false
	}

	r.closed = true
	delete(s.rooms, id)
	return r, true
}

// Rooms lists the live rooms sorted by ID
func (s *Store) Rooms() []*Room {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Counts returns the number of live rooms and of members across them
func (s *Store) Counts() (rooms, members int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms = len(s.rooms)
	for _, r := range s.rooms {
		members += r.MemberCount()
	}
	return rooms, members
}
