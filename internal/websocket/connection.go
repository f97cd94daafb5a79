package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps one participant's WebSocket. All writes go through a
// single writer goroutine; gorilla connections do not allow concurrent
// writers.
type Connection struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	userID    string
	role      string
	roomID    string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket with participant identity
// established at open time.
func NewConnection(conn *websocket.Conn, userID, role, roomID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan []byte, 100),
		userID:  userID,
		role:    role,
		roomID:  roomID,
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a frame for the writer goroutine. Safe for
// concurrent use. A full queue counts as a write timeout rather than
// blocking the caller; the channel is best-effort.
func (c *Connection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

func (c *Connection) UserID() string { return c.userID }
func (c *Connection) Role() string   { return c.role }
func (c *Connection) RoomID() string { return c.roomID }

// Done is closed when the connection reaches its terminal state.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }
