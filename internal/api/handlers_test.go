package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manpreetbhatti/sketchboard/internal/compaction"
	"github.com/manpreetbhatti/sketchboard/internal/db"
	"github.com/manpreetbhatti/sketchboard/internal/protocol"
	"github.com/manpreetbhatti/sketchboard/internal/ratelimit"
	"github.com/manpreetbhatti/sketchboard/internal/room"
	"github.com/manpreetbhatti/sketchboard/internal/ws"
)

type testSession struct{ id string }

func (s *testSession) ID() string        { return s.id }
func (s *testSession) Send([]byte) error { return nil }
func (s *testSession) Close() error      { return nil }

type testEnv struct {
	api      *API
	router   *gin.Engine
	hub      *ws.Hub
	database *db.Database
	recorder *db.Recorder
}

func setupTestAPI(t *testing.T, withDB bool, connects *ratelimit.KeyedLimiters) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{}
	var journal ws.Journal
	if withDB {
		tmpDir, err := os.MkdirTemp("", "sketchboard-api-test-*")
		require.NoError(t, err)

		env.database, err = db.New(filepath.Join(tmpDir, "test.db"))
		require.NoError(t, err)
		env.recorder = db.NewRecorder(env.database, 16)
		env.recorder.Start()
		journal = env.recorder

		t.Cleanup(func() {
			env.recorder.Stop()
			env.database.Close()
			os.RemoveAll(tmpDir)
		})
	}

	store := room.NewStore(0)
	env.hub = ws.NewHub(store, journal, ws.DefaultOptions())
	env.api = New(Deps{
		Hub:       env.hub,
		Store:     store,
		Server:    ws.NewServer(env.hub, ws.DefaultClientConfig()),
		Compactor: compaction.New(store, compaction.DefaultConfig()),
		Database:  env.database,
		Connects:  connects,
	})
	env.router = env.api.Router([]string{"http://localhost:3000"})
	return env
}

func (e *testEnv) join(t *testing.T, sessionID, roomID, username string) *ws.Peer {
	t.Helper()
	p := e.hub.Connect(&testSession{id: sessionID})
	require.NoError(t, e.hub.Join(p, roomID, username))
	return p
}

func (e *testEnv) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func TestHealthHandler(t *testing.T) {
	env := setupTestAPI(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestStatsHandler(t *testing.T) {
	env := setupTestAPI(t, true, nil)
	env.join(t, "a", "game123", "Alice")
	env.join(t, "b", "game123", "Bob")
	env.join(t, "c", "other", "Carol")
	env.hub.Connect(&testSession{id: "idle"})

	w, body := env.do(t, http.MethodGet, "/api/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["active_rooms"])
	assert.EqualValues(t, 3, body["active_members"])
	assert.EqualValues(t, 4, body["active_sessions"])
	assert.Contains(t, body, "journal")
	assert.NotContains(t, body, "tracked_clients")
}

func TestListRoomsHandler(t *testing.T) {
	env := setupTestAPI(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/api/rooms")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["count"])

	alice := env.join(t, "a", "b-room", "Alice")
	env.join(t, "b", "a-room", "Bob")
	require.NoError(t, env.hub.Draw(alice, protocol.DrawStroke{X1: 1, Color: "#000000", LineWidth: 5}))

	w, body = env.do(t, http.MethodGet, "/api/rooms")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])

	rooms := body["rooms"].([]any)
	first := rooms[0].(map[string]any)
	second := rooms[1].(map[string]any)
	assert.Equal(t, "a-room", first["id"])
	assert.Equal(t, "b-room", second["id"])
	assert.EqualValues(t, 1, second["history_length"])
	assert.EqualValues(t, 1, second["strokes_drawn"])
}

func TestGetRoomHandler(t *testing.T) {
	env := setupTestAPI(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/api/rooms/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Room not found", body["error"])

	alice := env.join(t, "a", "game123", "Alice")
	env.join(t, "b", "game123", "Bob")
	require.NoError(t, env.hub.Draw(alice, protocol.DrawStroke{X0: 1, Y0: 2, X1: 3, Y1: 4, Color: "#ff0000", LineWidth: 2}))

	w, body = env.do(t, http.MethodGet, "/api/rooms/game123")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["members"])
	assert.NotContains(t, body, "history")

	players := body["players"].([]any)
	require.Len(t, players, 2)
	assert.Equal(t, "Alice", players[0].(map[string]any)["username"])
	assert.Equal(t, "Bob", players[1].(map[string]any)["username"])

	w, body = env.do(t, http.MethodGet, "/api/rooms/game123?history=true")
	assert.Equal(t, http.StatusOK, w.Code)
	history := body["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "#ff0000", history[0].(map[string]any)["color"])
}

func TestCompactRoomHandler(t *testing.T) {
	env := setupTestAPI(t, false, nil)

	w, _ := env.do(t, http.MethodPost, "/api/rooms/missing/compact")
	assert.Equal(t, http.StatusNotFound, w.Code)

	alice := env.join(t, "a", "game123", "Alice")
	for i := 0; i < 3; i++ {
		stroke := protocol.DrawStroke{X0: float64(i), X1: float64(i + 1), Color: "#000000", LineWidth: 5}
		require.NoError(t, env.hub.Draw(alice, stroke))
	}

	w, body := env.do(t, http.MethodPost, "/api/rooms/game123/compact")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["before"])
	assert.EqualValues(t, 1, body["after"])
}

func TestListSessionsWithoutJournal(t *testing.T) {
	env := setupTestAPI(t, false, nil)

	w, body := env.do(t, http.MethodGet, "/api/sessions")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Journal disabled", body["error"])
}

func TestListSessionsRecordsRoomLifetime(t *testing.T) {
	env := setupTestAPI(t, true, nil)

	alice := env.join(t, "a", "game123", "Alice")
	require.NoError(t, env.hub.Draw(alice, protocol.DrawStroke{X1: 1, Color: "#000000", LineWidth: 5}))
	env.hub.Disconnect(alice)
	env.recorder.Stop()

	w, body := env.do(t, http.MethodGet, "/api/sessions?room=game123&limit=500")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 50, body["limit"])

	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)
	row := sessions[0].(map[string]any)
	assert.Equal(t, "game123", row["room_id"])
	assert.EqualValues(t, 1, row["strokes_drawn"])
	assert.EqualValues(t, 1, row["peak_members"])
	assert.NotNil(t, row["closed_at"])
}

func TestWebSocketConnectLimit(t *testing.T) {
	connects := ratelimit.NewKeyedLimiters(0.001, 1)
	t.Cleanup(connects.Stop)
	env := setupTestAPI(t, false, connects)

	// Not an upgrade request, so the first attempt fails the handshake
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := env.do(t, http.MethodGet, "/ws")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many connection attempts", body["error"])

	w, body = env.do(t, http.MethodGet, "/api/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["tracked_clients"])
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestAPI(t, false, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
