package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codecampus/campus-core/pkg/rolemodel"
)

const (
	// sendBuffer bounds the per-connection outbound queue. Overflow closes
	// the connection; the client re-syncs on reconnect.
	sendBuffer   = 64
	writeTimeout = 10 * time.Second

	closeAuthFailure = 4401
	closeIdle        = 4408
)

// Conn is one WebSocket connection: a reader loop in the handler goroutine
// and a single writer goroutine draining the send queue.
type Conn struct {
	ws        *websocket.Conn
	principal *rolemodel.Principal

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	channels map[string]struct{}
}

func newConn(ws *websocket.Conn, p *rolemodel.Principal) *Conn {
	return &Conn{
		ws:        ws,
		principal: p,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		channels:  make(map[string]struct{}),
	}
}

// writeLoop is the single writer. One outstanding send at a time.
func (c *Conn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue queues a frame for delivery. A full queue means the client cannot
// keep up; the connection is closed instead of blocking the hub.
func (c *Conn) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.close(websocket.ClosePolicyViolation, "send queue overflow")
	}
}

// sendEvent marshals a flat event frame onto the queue.
func (c *Conn) sendEvent(event string, fields map[string]any) {
	frame := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		frame[k] = v
	}
	frame["type"] = event
	msg, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.enqueue(msg)
}

// close shuts the connection down exactly once.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Conn) removeChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

func (c *Conn) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

// channelList snapshots the subscriptions for cleanup.
func (c *Conn) channelList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
