package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Router builds the HTTP surface. "*" in allowedOrigins accepts any origin.
func (a *API) Router(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", a.HealthHandler)
	r.GET("/ws", a.connectLimit(), a.WebSocketHandler)

	routes := r.Group("/api")
	{
		routes.GET("/stats", a.StatsHandler)
		routes.GET("/rooms", a.ListRoomsHandler)
		routes.GET("/rooms/:id", a.GetRoomHandler)
		routes.POST("/rooms/:id/compact", a.CompactRoomHandler)
		routes.GET("/sessions", a.ListSessionsHandler)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("http request")
	}
}

// connectLimit throttles websocket upgrades per client address
func (a *API) connectLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.connects == nil || a.connects.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		log.Warn().Str("client", c.ClientIP()).Msg("connection rate limit exceeded")
		errorResponse(c, http.StatusTooManyRequests, "Too many connection attempts")
	}
}
