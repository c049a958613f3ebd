package chat

import (
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/pelusa-v/finder-chat/internal/metrics"
)

// ConnLike is the subset of a websocket connection a Client needs.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client is one connected participant session. Outbound frames go through a
// bounded queue drained by WritePump.
type Client struct {
	ID   string
	Conn ConnLike

	mu      sync.Mutex
	send    chan []byte
	closed  bool
	address string
}

func NewClient(id string, conn ConnLike, buffer int) *Client {
	if buffer < 1 {
		buffer = 1
	}
	return &Client{ID: id, Conn: conn, send: make(chan []byte, buffer)}
}

// Enqueue queues a frame without blocking. It returns false when the client
// is closed or its queue is full; the frame is dropped in both cases.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		metrics.DroppedFrames.Inc()
		return false
	}
}

// Address is the wallet address bound by an authenticated join, if any.
func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Client) bindAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = addr
}

// close stops the outbound queue. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump drains the outbound queue until the client is closed.
func (c *Client) WritePump() {
	for data := range c.send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// unblocks ReadPump so the engine can clean up
			_ = c.Conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// ReadPump hands inbound frames to handle in arrival order and returns on
// the first read error.
func (c *Client) ReadPump(handle func(frame []byte)) {
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		handle(data)
	}
}
