package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manpreetbhatti/sketchboard/internal/compaction"
	"github.com/manpreetbhatti/sketchboard/internal/db"
	"github.com/manpreetbhatti/sketchboard/internal/protocol"
	"github.com/manpreetbhatti/sketchboard/internal/ratelimit"
	"github.com/manpreetbhatti/sketchboard/internal/room"
	"github.com/manpreetbhatti/sketchboard/internal/ws"
)

type API struct {
	hub       *ws.Hub
	store     *room.Store
	server    *ws.Server
	compactor *compaction.Service
	database  *db.Database
	connects  *ratelimit.KeyedLimiters
}

type Deps struct {
	Hub       *ws.Hub
	Store     *room.Store
	Server    *ws.Server
	Compactor *compaction.Service
	// Optional; journal endpoints answer 503 without it
	Database *db.Database
	// Optional; upgrades are unthrottled without it
	Connects *ratelimit.KeyedLimiters
}

func New(deps Deps) *API {
	return &API{
		hub:       deps.Hub,
		store:     deps.Store,
		server:    deps.Server,
		compactor: deps.Compactor,
		database:  deps.Database,
		connects:  deps.Connects,
	}
}

func errorResponse(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(c *gin.Context) {
	rooms, members := a.store.Counts()
	stats := gin.H{
		"active_rooms":    rooms,
		"active_members":  members,
		"active_sessions": a.hub.SessionCount(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	if a.connects != nil {
		stats["tracked_clients"] = a.connects.Len()
	}

	if a.database != nil {
		if journal, err := a.database.GetStats(); err == nil {
			stats["journal"] = journal
		}
	}

	c.JSON(http.StatusOK, stats)
}

type RoomResponse struct {
	ID            string    `json:"id"`
	Members       int       `json:"members"`
	HistoryLength int       `json:"history_length"`
	OpenedAt      time.Time `json:"opened_at"`
	PeakMembers   int       `json:"peak_members"`
	StrokesDrawn  int       `json:"strokes_drawn"`
	Clears        int       `json:"clears"`
	Evicted       int       `json:"evicted"`
}

type PlayerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type RoomDetailResponse struct {
	RoomResponse
	Players []PlayerResponse      `json:"players"`
	History []protocol.DrawStroke `json:"history,omitempty"`
}

func (a *API) ListRoomsHandler(c *gin.Context) {
	rooms := a.store.Rooms()

	response := make([]RoomResponse, len(rooms))
	for i, r := range rooms {
		stats := r.Stats()
		response[i] = RoomResponse{
			ID:            r.ID,
			Members:       r.MemberCount(),
			HistoryLength: r.HistoryLen(),
			OpenedAt:      stats.OpenedAt.UTC(),
			PeakMembers:   stats.PeakMembers,
			StrokesDrawn:  stats.StrokesDrawn,
			Clears:        stats.Clears,
			Evicted:       stats.Evicted,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms": response,
		"count": len(response),
	})
}

// GetRoomHandler describes one live room. ?history=true includes the strokes.
func (a *API) GetRoomHandler(c *gin.Context) {
	r, ok := a.store.Get(c.Param("id"))
	if !ok {
		errorResponse(c, http.StatusNotFound, "Room not found")
		return
	}

	snap := r.Snapshot()
	players := make([]PlayerResponse, len(snap.Players))
	for i, p := range snap.Players {
		players[i] = PlayerResponse{ID: p.SessionID, Username: p.Player.Username, Score: p.Player.Score}
	}

	response := RoomDetailResponse{
		RoomResponse: RoomResponse{
			ID:            snap.ID,
			Members:       len(snap.Players),
			HistoryLength: len(snap.History),
			OpenedAt:      snap.Stats.OpenedAt.UTC(),
			PeakMembers:   snap.Stats.PeakMembers,
			StrokesDrawn:  snap.Stats.StrokesDrawn,
			Clears:        snap.Stats.Clears,
			Evicted:       snap.Stats.Evicted,
		},
		Players: players,
	}
	if includeHistory, _ := strconv.ParseBool(c.Query("history")); includeHistory {
		response.History = snap.History
	}

	c.JSON(http.StatusOK, response)
}

func (a *API) CompactRoomHandler(c *gin.Context) {
	roomID := c.Param("id")
	before, after, err := a.compactor.CompactNow(roomID)
	if errors.Is(err, compaction.ErrRoomNotFound) {
		errorResponse(c, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to compact room")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id": roomID,
		"before":  before,
		"after":   after,
	})
}

// ListSessionsHandler pages through the room activity journal, newest first
func (a *API) ListSessionsHandler(c *gin.Context) {
	if a.database == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Journal disabled")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	roomID := c.Query("room")
	sessions, err := a.database.ListRoomSessions(roomID, limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"room":     roomID,
		"limit":    limit,
		"offset":   offset,
	})
}

func (a *API) WebSocketHandler(c *gin.Context) {
	a.server.ServeWs(c.Writer, c.Request)
}
