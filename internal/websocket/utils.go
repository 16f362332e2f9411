package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla connection with a write lock. The exam stream has two
// writers per connection (the reader loop and the expiry watcher), and
// gorilla permits only one concurrent writer.
type Conn struct {
	mu  sync.Mutex
	raw *websocket.Conn
}

// NewConn wraps an upgraded connection.
func NewConn(raw *websocket.Conn) *Conn {
	return &Conn{raw: raw}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.raw.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline. Only one goroutine may read.
func (c *Conn) ReadJSON(v interface{}) error {
	c.raw.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.raw.ReadJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}
