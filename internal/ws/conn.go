package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/edulive/collab/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

// ErrSendBufferFull means a connection fell too far behind and will be
// dropped rather than allowed to stall broadcast fan-out.
var ErrSendBufferFull = errors.New("connection send buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle is one live transport connection for a user (one per device or
// tab). The registry tracks handles; the broadcast engine enqueues to
// them without ever blocking on socket I/O.
type Handle interface {
	UserID() string
	Enqueue(data []byte) error
	Close() error
}

// Upgrade performs the websocket handshake.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// Client is the gorilla-backed Handle with the usual read/write pump
// pair. Inbound frames are rate-limited and handed to onEvent; onClose
// fires exactly once when the read pump exits.
type Client struct {
	conn     *websocket.Conn
	userID   string
	username string
	role     room.Role
	send     chan []byte
	limiter  *rate.Limiter
	onEvent  func(*Client, Envelope)
	onClose  func(*Client)
}

func NewClient(conn *websocket.Conn, userID, username string, role room.Role, eventsPerSec float64, burst int, onEvent func(*Client, Envelope), onClose func(*Client)) *Client {
	return &Client{
		conn:     conn,
		userID:   userID,
		username: username,
		role:     role,
		send:     make(chan []byte, sendBuffer),
		limiter:  rate.NewLimiter(rate.Limit(eventsPerSec), burst),
		onEvent:  onEvent,
		onClose:  onClose,
	}
}

func (c *Client) UserID() string   { return c.userID }
func (c *Client) Username() string { return c.username }
func (c *Client) Role() room.Role  { return c.role }

// Enqueue hands data to the write pump without blocking.
func (c *Client) Enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// SendEvent marshals and enqueues a direct event to this connection only.
func (c *Client) SendEvent(eventType, roomID string, payload any) {
	data, err := NewEvent(eventType, roomID, payload)
	if err != nil {
		return
	}
	if err := c.Enqueue(data); err != nil {
		slog.Debug("dropping direct event", "user_id", c.userID, "type", eventType)
	}
}

// Run starts both pumps and blocks until the connection is gone.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws read error", "error", err, "user_id", c.userID)
			}
			return
		}

		// Flood control for cursor/drawing bursts; drop, never error.
		if !c.limiter.Allow() {
			slog.Debug("rate limit exceeded, dropping event", "user_id", c.userID)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.onEvent(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
