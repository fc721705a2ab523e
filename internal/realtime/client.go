package realtime

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"taproom/pkg/domain"
)

const (
	defaultSendBuffer   = 16
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	maxInboundBytes     = 4096
)

// ClientConfig tunes one connection.
type ClientConfig struct {
	SendBuffer   int
	PingInterval time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendBuffer < 1 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	return c
}

// Client is one websocket connection. Only the write loop writes to the
// socket; Send hands payloads to it through a bounded queue.
type Client struct {
	id     domain.ConnectionID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, cfg ClientConfig, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := domain.NewConnectionID()
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		cfg:    cfg,
		logger: logger.With("connection_id", id.String()),
	}
}

func (c *Client) ID() domain.ConnectionID {
	return c.id
}

// Send queues payload. A full queue or a closed client drops it.
func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.logger.Warn("send queue full, dropping message")
		return false
	}
}

// Close stops the write loop and closes the socket. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// Run starts the write loop and blocks in the read loop until the peer goes
// away or the client is closed.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
	_ = c.Close()
}

// readLoop discards inbound frames; taps only listen. It keeps the read
// deadline moving with pongs so dead peers are detected.
func (c *Client) readLoop() {
	pongWait := c.cfg.PingInterval * 2
	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("websocket ping failed", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}
