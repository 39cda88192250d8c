package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type HTTPServer struct {
	Port           string
	AllowedOrigins []string
}

type Rooms struct {
	MaxHistory        int
	MaxUsernameLength int
	MaxRoomIDLength   int
}

type Limits struct {
	MessagesPerSecond float64
	MessageBurst      int
	ConnectsPerMinute int
}

type Compaction struct {
	Interval  time.Duration
	Threshold int
}

type Logging struct {
	Level  string
	Pretty bool
}

type Config struct {
	HTTP       HTTPServer
	DBPath     string
	Rooms      Rooms
	Limits     Limits
	Compaction Compaction
	Logging    Logging
}

// Load reads configuration from the environment. A -config flag names an env
// file to load first; without it a .env in the working directory is used if
// present. Variables already set in the environment win over file values.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("sketchboard", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := godotenv.Load(*configPath); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", *configPath, err)
		}
	} else {
		_ = godotenv.Load()
	}

	return FromEnv(), nil
}

func FromEnv() *Config {
	return &Config{
		HTTP: HTTPServer{
			Port:           getenv("PORT", "8080"),
			AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "*")),
		},
		DBPath: getenvAllowEmpty("SKETCHBOARD_DB_PATH", "./data/sketchboard.db"),
		Rooms: Rooms{
			MaxHistory:        getint("MAX_HISTORY", 20000),
			MaxUsernameLength: getint("MAX_USERNAME_LENGTH", 20),
			MaxRoomIDLength:   getint("MAX_ROOM_ID_LENGTH", 32),
		},
		Limits: Limits{
			MessagesPerSecond: getfloat("MESSAGES_PER_SECOND", 120),
			MessageBurst:      getint("MESSAGE_BURST", 240),
			ConnectsPerMinute: getint("CONNECTS_PER_MINUTE", 60),
		},
		Compaction: Compaction{
			Interval:  getduration("COMPACTION_INTERVAL", 5*time.Minute),
			Threshold: getint("COMPACTION_THRESHOLD", 500),
		},
		Logging: Logging{
			Level:  getenv("LOG_LEVEL", "info"),
			Pretty: getbool("LOG_PRETTY", true),
		},
	}
}

func getenv(key, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultValue
}

// An explicitly empty value is kept; only an unset key takes the default.
func getenvAllowEmpty(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return defaultValue
}

func getint(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		log.Warn().Str("key", key).Str("value", raw).Int("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}

func getfloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", defaultValue).Msg("invalid number, using default")
		return defaultValue
	}
	return f
}

func getbool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Bool("default", defaultValue).Msg("invalid boolean, using default")
		return defaultValue
	}
	return b
}

func getduration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", defaultValue).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
