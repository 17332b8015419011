/*
Package chat contains the room/session coordination core of the relay.

This file defines the Client struct, the WebSocket implementation of Conn. It owns the
read and write loops, heartbeats, and the outbound queue; it has no room logic.
*/
package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voicerelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// WsCloseCodeServerShutdown is sent to clients when the server stops.
	WsCloseCodeServerShutdown = websocket.CloseGoingAway
)

// ClientOptions tunes a Client's limits.
type ClientOptions struct {
	// MaxMessageBytes caps the size of one inbound frame; audio frames dominate.
	MaxMessageBytes int64

	// SendQueueSize is the number of outbound frames buffered before drops start.
	SendQueueSize int
}

// Client struct represents an active WebSocket connection.
type Client struct {
	// server-assigned identity, never reused.
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// closed is set once send has been closed; mu guards both against concurrent Send.
	closed bool
	mu     sync.RWMutex

	opts ClientOptions

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(id string, wsConn *websocket.Conn, opts ClientOptions) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("conn_id", id).
		Logger()

	return &Client{
		id:     id,
		conn:   wsConn,
		send:   make(chan []byte, opts.SendQueueSize),
		opts:   opts,
		logger: clientLogger,
	}
}

// ID implements Conn.
func (c *Client) ID() string {
	return c.id
}

// Send implements Conn. It never blocks: a full queue drops the frame.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close implements Conn. Closing the queue makes WritePump send a close frame and exit.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads frames and hands them to session until the connection fails or
// closes, then disconnects the session. It blocks and runs on the handler goroutine.
func (c *Client) ReadPump(session *Session) {
	defer c.cleanupOnDisconnect(session)

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		if msgType != websocket.TextMessage {
			c.logger.Debug().Int("ws_type", msgType).Msg("Ignoring non-text frame")
			continue
		}

		session.HandleMessage(messageBytes)
	}
}

// cleanupOnDisconnect runs when ReadPump ends.
func (c *Client) cleanupOnDisconnect(session *Session) {
	c.logger.Info().Msg("Client connection cleanup starting.")

	session.Disconnect()
	c.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump writes queued frames and periodic pings until the queue is closed or a
// write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// closing here unblocks ReadPump when the write side fails first
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame, or a close frame once the queue is closed.
// Returns false when WritePump should stop.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMessage := websocket.FormatCloseMessage(WsCloseCodeServerShutdown, "connection closed")
		if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a heartbeat. Returns false when WritePump should stop.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
