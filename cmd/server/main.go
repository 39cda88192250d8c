package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/manpreetbhatti/sketchboard/internal/api"
	"github.com/manpreetbhatti/sketchboard/internal/compaction"
	"github.com/manpreetbhatti/sketchboard/internal/config"
	"github.com/manpreetbhatti/sketchboard/internal/db"
	"github.com/manpreetbhatti/sketchboard/internal/logger"
	"github.com/manpreetbhatti/sketchboard/internal/ratelimit"
	"github.com/manpreetbhatti/sketchboard/internal/room"
	"github.com/manpreetbhatti/sketchboard/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	var (
		database *db.Database
		recorder *db.Recorder
		journal  ws.Journal
	)
	if cfg.DBPath != "" {
		database, err = db.New(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer database.Close()

		if n, err := database.CloseDanglingSessions(time.Now()); err != nil {
			log.Warn().Err(err).Msg("failed to close dangling room sessions")
		} else if n > 0 {
			log.Info().Int64("rows", n).Msg("closed room sessions left open by previous run")
		}

		recorder = db.NewRecorder(database, 1024)
		recorder.Start()
		defer recorder.Stop()
		journal = recorder
	} else {
		log.Info().Msg("journal disabled")
	}

	store := room.NewStore(cfg.Rooms.MaxHistory)
	hub := ws.NewHub(store, journal, ws.Options{
		MaxRoomIDLength:   cfg.Rooms.MaxRoomIDLength,
		MaxUsernameLength: cfg.Rooms.MaxUsernameLength,
	})
	wsServer := ws.NewServer(hub, ws.ClientConfig{
		MessagesPerSecond: cfg.Limits.MessagesPerSecond,
		MessageBurst:      cfg.Limits.MessageBurst,
		SendBuffer:        ws.DefaultClientConfig().SendBuffer,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
	})

	compactor := compaction.New(store, compaction.Config{
		Interval:  cfg.Compaction.Interval,
		Threshold: cfg.Compaction.Threshold,
	})
	compactor.Start()
	defer compactor.Stop()

	var connects *ratelimit.KeyedLimiters
	if cfg.Limits.ConnectsPerMinute > 0 {
		perMinute := cfg.Limits.ConnectsPerMinute
		connects = ratelimit.NewKeyedLimiters(float64(perMinute)/60, perMinute)
		defer connects.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.New(api.Deps{
		Hub:       hub,
		Store:     store,
		Server:    wsServer,
		Compactor: compactor,
		Database:  database,
		Connects:  connects,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler.Router(cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.HTTP.Port).
			Str("database", cfg.DBPath).
			Int("max_history", cfg.Rooms.MaxHistory).
			Msg("sketchboard server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
