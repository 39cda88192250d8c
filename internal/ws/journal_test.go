package ws

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manpreetbhatti/sketchboard/internal/db"
	"github.com/manpreetbhatti/sketchboard/internal/protocol"
	"github.com/manpreetbhatti/sketchboard/internal/room"
)

// gatedJournal holds the first RoomOpened until released
type gatedJournal struct {
	Journal
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedJournal) RoomOpened(roomID, lifetime string, at time.Time) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	g.Journal.RoomOpened(roomID, lifetime, at)
}

func TestJournalClosesRoomWhoseOpenArrivesLate(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	recorder := db.NewRecorder(database, 16)
	recorder.Start()
	t.Cleanup(recorder.Stop)

	gate := &gatedJournal{
		Journal: recorder,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	hub := NewHub(room.NewStore(0), gate, DefaultOptions())
	c, cs := connect(hub, "c")
	d, _ := connect(hub, "d")

	joined := make(chan error, 1)
	go func() { joined <- hub.Join(c, "r", "C") }()
	<-gate.entered

	// c created the room but has not joined it; d passes through and empties it
	require.NoError(t, hub.Join(d, "r", "D"))
	hub.Disconnect(d)

	close(gate.release)
	require.NoError(t, <-joined)
	assert.NotEmpty(t, cs.Events(protocol.EventRoomState))

	hub.Disconnect(c)
	recorder.Stop()

	sessions, err := database.ListRoomSessions("r", 10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.NotNil(t, s.ClosedAt, "lifetime %s left open", s.LifetimeID)
	}

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.OpenSessions)
}
