package db

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/manpreetbhatti/sketchboard/internal/room"
)

type recordKind int

const (
	recordOpened recordKind = iota
	recordClosed
)

type record struct {
	kind     recordKind
	roomID   string
	lifetime string
	stats    room.Stats
	at       time.Time
}

// Recorder writes room lifecycle events to the database from a single
// goroutine. Events are queued without blocking; when the queue is full they
// are dropped.
type Recorder struct {
	database *Database
	queue    chan record
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRecorder(database *Database, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Recorder{
		database: database,
		queue:    make(chan record, queueSize),
		stop:     make(chan struct{}),
	}
}

func (r *Recorder) RoomOpened(roomID, lifetime string, at time.Time) {
	r.enqueue(record{kind: recordOpened, roomID: roomID, lifetime: lifetime, at: at})
}

func (r *Recorder) RoomClosed(roomID, lifetime string, stats room.Stats, at time.Time) {
	r.enqueue(record{kind: recordClosed, roomID: roomID, lifetime: lifetime, stats: stats, at: at})
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		log.Warn().Str("room", rec.roomID).Msg("journal queue full, dropping event")
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop writes whatever is still queued and waits for the writer to exit
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-r.stop:
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec record) {
	var err error
	switch rec.kind {
	case recordOpened:
		err = r.database.OpenRoomSession(rec.lifetime, rec.roomID, rec.at)
	case recordClosed:
		err = r.database.CloseRoomSession(rec.lifetime, rec.roomID, rec.at, Summary{
			OpenedAt:     rec.stats.OpenedAt,
			PeakMembers:  rec.stats.PeakMembers,
			StrokesDrawn: rec.stats.StrokesDrawn,
			Clears:       rec.stats.Clears,
		})
	}
	if err != nil {
		log.Error().Err(err).Str("room", rec.roomID).Msg("journal write failed")
	}
}
