package stream

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer (control messages only)
	maxMessageSize = 64 * 1024

	// Send buffer size
	sendBufferSize = 64
)

// ErrClientClosed is returned by Send after the client disconnects
var ErrClientClosed = errors.New("websocket client closed")

// WSClient adapts a gorilla websocket connection to the Viewer interface.
// Outgoing messages flow through a buffered channel drained by WritePump;
// when the buffer is full the frame is silently dropped so a slow client
// lags instead of stalling the pipeline.
type WSClient struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWSClient wraps an upgraded websocket connection
func NewWSClient(id string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send queues a message for the client. Returns ErrClientClosed once the
// connection is gone; a full buffer drops the message without error.
func (c *WSClient) Send(message []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.closed:
		return ErrClientClosed
	default:
		// Buffer full, skip this frame
		return nil
	}
}

// Close terminates the client; safe to call more than once
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// ReadPump reads control messages from the peer until the connection
// drops, passing each one to handle. It owns the read side deadlines.
func (c *WSClient) ReadPump(handle func(message []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ WebSocket error from %s: %v", c.ID, err)
			}
			return
		}
		if handle != nil {
			handle(message)
		}
	}
}

// WritePump drains the send channel to the peer and keeps the connection
// alive with pings.
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return

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
		}
	}
}
