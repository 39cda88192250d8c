package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "SKETCHBOARD_DB_PATH", "LOG_LEVEL", "LOG_PRETTY", "ALLOWED_ORIGINS",
	"MAX_HISTORY", "MAX_USERNAME_LENGTH", "MAX_ROOM_ID_LENGTH",
	"MESSAGES_PER_SECOND", "MESSAGE_BURST", "CONNECTS_PER_MINUTE",
	"COMPACTION_INTERVAL", "COMPACTION_THRESHOLD",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "./data/sketchboard.db", cfg.DBPath)
	assert.Equal(t, 20000, cfg.Rooms.MaxHistory)
	assert.Equal(t, 20, cfg.Rooms.MaxUsernameLength)
	assert.Equal(t, 32, cfg.Rooms.MaxRoomIDLength)
	assert.Equal(t, 120.0, cfg.Limits.MessagesPerSecond)
	assert.Equal(t, 240, cfg.Limits.MessageBurst)
	assert.Equal(t, 60, cfg.Limits.ConnectsPerMinute)
	assert.Equal(t, 5*time.Minute, cfg.Compaction.Interval)
	assert.Equal(t, 500, cfg.Compaction.Threshold)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_HISTORY", "100")
	t.Setenv("MESSAGES_PER_SECOND", "2.5")
	t.Setenv("COMPACTION_INTERVAL", "30s")
	t.Setenv("LOG_PRETTY", "false")

	cfg := FromEnv()
	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 100, cfg.Rooms.MaxHistory)
	assert.Equal(t, 2.5, cfg.Limits.MessagesPerSecond)
	assert.Equal(t, 30*time.Second, cfg.Compaction.Interval)
	assert.False(t, cfg.Logging.Pretty)
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_HISTORY", "lots")
	t.Setenv("MESSAGE_BURST", "-4")
	t.Setenv("MESSAGES_PER_SECOND", "fast")
	t.Setenv("COMPACTION_INTERVAL", "soon")
	t.Setenv("LOG_PRETTY", "maybe")

	cfg := FromEnv()
	assert.Equal(t, 20000, cfg.Rooms.MaxHistory)
	assert.Equal(t, 240, cfg.Limits.MessageBurst)
	assert.Equal(t, 120.0, cfg.Limits.MessagesPerSecond)
	assert.Equal(t, 5*time.Minute, cfg.Compaction.Interval)
	assert.True(t, cfg.Logging.Pretty)
}

func TestEmptyDBPathDisablesJournal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKETCHBOARD_DB_PATH", "")

	assert.Equal(t, "", FromEnv().DBPath)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nMAX_ROOM_ID_LENGTH=16\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("MAX_ROOM_ID_LENGTH")
	})

	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, 16, cfg.Rooms.MaxRoomIDLength)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)
}
