package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Envelope is the JSON frame pushed to every websocket client.
type Envelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  int         `json:"code,omitempty"`
}

// Client owns the write side of one connection. All writes go through send
// so that bus handlers never touch the connection directly.
type Client struct {
	conn      *websocket.Conn
	learnerID string
	send      chan []byte
	closed    chan struct{}
	stopped   chan struct{}
	once      sync.Once
	log       *zap.Logger
}

func newClient(conn *websocket.Conn, learnerID string, log *zap.Logger) *Client {
	return &Client{
		conn:      conn,
		learnerID: learnerID,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
		stopped:   make(chan struct{}),
		log:       log,
	}
}

// Send queues a message without blocking. It reports false when the client
// is gone or too slow to keep up.
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn("Dropping websocket message for slow client", zap.String("learner_id", c.learnerID))
		return false
	}
}

func (c *Client) SendJSON(env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("Failed to encode websocket message", zap.String("type", env.Type), zap.Error(err))
		return false
	}
	return c.Send(data)
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
}

// shutdown closes the client and waits for writePump to return. Handlers
// call it before returning, since the connection is released afterwards.
func (c *Client) shutdown() {
	c.Close()
	<-c.stopped
}

// prepareRead installs the read limits and the pong handler that keeps the
// read deadline moving.
func (c *Client) prepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// writePump runs until Close and then sends a close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.stopped)
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			c.drain()
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes what was queued before Close.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
