package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Database is the room activity journal: one row per room lifetime, from the
// first join to the last leave. Canvas contents are never stored.
type Database struct {
	db *sql.DB
}

// RoomSession is one lifetime of a room
type RoomSession struct {
	ID           int64      `json:"id"`
	LifetimeID   string     `json:"lifetime_id"`
	RoomID       string     `json:"room_id"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	PeakMembers  int        `json:"peak_members"`
	StrokesDrawn int        `json:"strokes_drawn"`
	Clears       int        `json:"clears"`
}

// Summary is what a room reports when it closes
type Summary struct {
	OpenedAt     time.Time
	PeakMembers  int
	StrokesDrawn int
	Clears       int
}

type Stats struct {
	TotalSessions int `json:"total_sessions"`
	OpenSessions  int `json:"open_sessions"`
	DistinctRooms int `json:"distinct_rooms"`
	StrokesDrawn  int `json:"strokes_drawn"`
	Clears        int `json:"clears"`
	PeakMembers   int `json:"peak_members"`
}

func New(dbPath string) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("database initialized")
	return &Database{db: db}, nil
}

// Times are stored as unix milliseconds
func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS room_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lifetime_id TEXT NOT NULL UNIQUE,
		room_id TEXT NOT NULL,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER,
		peak_members INTEGER NOT NULL DEFAULT 0,
		strokes_drawn INTEGER NOT NULL DEFAULT 0,
		clears INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_room_sessions_room_id ON room_sessions(room_id, id DESC);
	CREATE INDEX IF NOT EXISTS idx_room_sessions_open ON room_sessions(closed_at) WHERE closed_at IS NULL;
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// OpenRoomSession records the start of a room lifetime. It is a no-op when
// the lifetime already has a row, which happens when its close was written
// first.
func (d *Database) OpenRoomSession(lifetimeID, roomID string, openedAt time.Time) error {
	_, err := d.db.Exec(`
		INSERT INTO room_sessions (lifetime_id, room_id, opened_at)
		VALUES (?, ?, ?)
		ON CONFLICT(lifetime_id) DO NOTHING
	`, lifetimeID, roomID, openedAt.UnixMilli())
	return err
}

// CloseRoomSession finalizes the row of one room lifetime, inserting a
// complete row when its open has not been written.
func (d *Database) CloseRoomSession(lifetimeID, roomID string, closedAt time.Time, summary Summary) error {
	openedAt := summary.OpenedAt
	if openedAt.IsZero() {
		openedAt = closedAt
	}
	_, err := d.db.Exec(`
		INSERT INTO room_sessions (lifetime_id, room_id, opened_at, closed_at, peak_members, strokes_drawn, clears)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lifetime_id) DO UPDATE SET
			closed_at = excluded.closed_at,
			peak_members = excluded.peak_members,
			strokes_drawn = excluded.strokes_drawn,
			clears = excluded.clears
	`, lifetimeID, roomID, openedAt.UnixMilli(), closedAt.UnixMilli(),
		summary.PeakMembers, summary.StrokesDrawn, summary.Clears)
	return err
}

// CloseDanglingSessions closes rows left open by a previous process
func (d *Database) CloseDanglingSessions(at time.Time) (int64, error) {
	result, err := d.db.Exec(
		"UPDATE room_sessions SET closed_at = ? WHERE closed_at IS NULL",
		at.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListRoomSessions returns rows newest first. An empty roomID lists all rooms.
func (d *Database) ListRoomSessions(roomID string, limit, offset int) ([]RoomSession, error) {
	query := `
		SELECT id, lifetime_id, room_id, opened_at, closed_at, peak_members, strokes_drawn, clears
		FROM room_sessions`
	args := []any{}
	if roomID != "" {
		query += " WHERE room_id = ?"
		args = append(args, roomID)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []RoomSession{}
	for rows.Next() {
		var (
			s        RoomSession
			openedAt int64
			closedAt sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.LifetimeID, &s.RoomID, &openedAt, &closedAt, &s.PeakMembers, &s.StrokesDrawn, &s.Clears); err != nil {
			return nil, err
		}
		s.OpenedAt = time.UnixMilli(openedAt).UTC()
		if closedAt.Valid {
			t := time.UnixMilli(closedAt.Int64).UTC()
			s.ClosedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (d *Database) GetStats() (Stats, error) {
	var stats Stats
	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) - COUNT(closed_at),
			COUNT(DISTINCT room_id),
			COALESCE(SUM(strokes_drawn), 0),
			COALESCE(SUM(clears), 0),
			COALESCE(MAX(peak_members), 0)
		FROM room_sessions
	`).Scan(&stats.TotalSessions, &stats.OpenSessions, &stats.DistinctRooms,
		&stats.StrokesDrawn, &stats.Clears, &stats.PeakMembers)
	return stats, err
}
