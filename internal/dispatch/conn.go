package dispatch

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 45 * time.Second

	// sendBuffer bounds the per-connection queue; a receiver that falls this
	// far behind is dropped rather than allowed to stall the session.
	sendBuffer = 16
)

// Conn wraps one websocket with a buffered outbox and a single writer
// goroutine, so broadcasts never write to the socket from the caller.
// The mutex orders enqueue against Close: the outbox channel is only ever
// closed with the lock held and the closed flag set first, so a concurrent
// enqueue sees the flag instead of a closed channel.
type Conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, send: make(chan []byte, sendBuffer)}
	go c.writePump()
	return c
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue reports false when the outbox is full and the connection should be
// dropped. A connection already closed swallows the payload; it is being torn
// down and needs no second drop.
func (c *Conn) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close shuts the outbox down exactly once. The writer pump drains and closes
// the underlying socket, which also unblocks the reader loop.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
