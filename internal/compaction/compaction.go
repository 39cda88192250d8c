package compaction

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/manpreetbhatti/sketchboard/internal/room"
)

var ErrRoomNotFound = errors.New("room not found")

type Config struct {
	Interval time.Duration
	// Rooms with fewer strokes than this are left alone by the periodic pass
	Threshold int
}

func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: 500,
	}
}

// Service periodically shrinks room histories without changing what a
// replay draws.
type Service struct {
	store    *room.Store
	config   Config
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(store *room.Store, config Config) *Service {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Service{
		store:  store,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Info().
		Dur("interval", s.config.Interval).
		Int("threshold", s.config.Threshold).
		Msg("compaction service started")
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	log.Info().Msg("compaction service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.compactAllRooms()
		}
	}
}

// compactAllRooms returns the number of rooms whose history shrank
func (s *Service) compactAllRooms() int {
	compacted := 0
	removed := 0
	for _, r := range s.store.Rooms() {
		if r.HistoryLen() < s.config.Threshold {
			continue
		}
		before, after := r.Compact(MergeCollinear)
		if after < before {
			compacted++
			removed += before - after
		}
	}

	if compacted > 0 {
		log.Info().Int("rooms", compacted).Int("strokes_removed", removed).Msg("compacted rooms")
	}
	return compacted
}

// CompactNow compacts one room regardless of the threshold
func (s *Service) CompactNow(roomID string) (before, after int, err error) {
	r, ok := s.store.Get(roomID)
	if !ok {
		return 0, 0, ErrRoomNotFound
	}
	before, after = r.Compact(MergeCollinear)
	log.Debug().Str("room", roomID).Int("before", before).Int("after", after).Msg("compacted room")
	return before, after, nil
}
