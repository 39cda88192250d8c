package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/manpreetbhatti/sketchboard/internal/ratelimit"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 16 * 1024
	maxRateViolations = 1000
)

type ClientConfig struct {
	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int
	// Empty or containing "*" accepts any origin
	AllowedOrigins []string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MessagesPerSecond: 120,
		MessageBurst:      240,
		SendBuffer:        512,
	}
}

// Server upgrades HTTP requests into hub sessions
type Server struct {
	hub      *Hub
	cfg      ClientConfig
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, cfg ClientConfig) *Server {
	s := &Server{hub: hub, cfg: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), conn, s.cfg)
	peer := s.hub.Connect(client)

	go client.writePump()
	go client.readPump(s.hub, peer)
}

// Client is a websocket-backed Session
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	rateLimiter *ratelimit.Limiter
}

func newClient(id string, conn *websocket.Conn, cfg ClientConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = DefaultClientConfig().SendBuffer
	}
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
		rateLimiter: ratelimit.NewLimiter(cfg.MessagesPerSecond, cfg.MessageBurst),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues a frame without blocking. A full queue means the peer cannot
// keep up; it is disconnected and cleans up through its own read loop.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		log.Warn().Str("session", c.id).Msg("send buffer full, disconnecting")
		c.Close()
		return ErrSlowConsumer
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

func (c *Client) readPump(hub *Hub, peer *Peer) {
	defer func() {
		hub.Disconnect(peer)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("session", c.id).Msg("websocket error")
			}
			return
		}

		if !c.rateLimiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				log.Warn().
					Str("session", c.id).
					Str("room", peer.Association().RoomID).
					Int("warnings", rateLimitWarnings).
					Msg("rate limit exceeded")
			}
			if rateLimitWarnings > maxRateViolations {
				log.Warn().Str("session", c.id).Msg("disconnecting for excessive rate limit violations")
				return
			}
			continue
		}

		hub.Dispatch(peer, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
