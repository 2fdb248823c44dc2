package realtime

import (
	"context"
	"sync"
	"time"

	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/utils/logging"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Connection wraps one websocket. All writes go through a single writer goroutine
// fed by a bounded outbox, so frames leave in the order they were queued.
type Connection struct {
	conn      *websocket.Conn
	outbox    chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	identity *middlewares.Identity
}

// NewConnection starts the writer. Cancelling parent closes the connection.
func NewConnection(parent context.Context, conn *websocket.Conn, outboxSize int) *Connection {
	ctx, cancel := context.WithCancel(parent)
	c := &Connection{
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case frame := <-c.outbox:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logging.AppLogger.Debug("websocket write failed", zap.Error(err))
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a frame without blocking. A full outbox means the client cannot keep up;
// the connection is closed rather than dropping a frame and breaking event order.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.outbox <- frame:
		return true
	default:
		logging.AppLogger.Warn("websocket outbox full, closing connection", zap.String("user_id", c.userIDString()))
		go c.Close(websocket.StatusPolicyViolation, "slow consumer")
		c.cancel()
		return false
	}
}

func (c *Connection) Close(code websocket.StatusCode, reason string) {
	// the close handshake runs before cancel so a pending Read sees the peer's reply
	c.closeOnce.Do(func() {
		_ = c.conn.Close(code, reason)
		c.cancel()
	})
}

// Done is closed once the connection stops accepting frames.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) Authenticate(id middlewares.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &id
}

func (c *Connection) Identity() (middlewares.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return middlewares.Identity{}, false
	}
	return *c.identity, true
}

func (c *Connection) userIDString() string {
	if id, ok := c.Identity(); ok {
		return id.UserID.String()
	}
	return ""
}
