package netsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	maxBackoff = 30 * time.Second
	writeWait  = 10 * time.Second
	dialWait   = 10 * time.Second
)

var errSendBufferFull = errors.New("send buffer full")

// connection manages a WebSocket connection with a single write goroutine.
// Frames read from the socket are handed to onFrame on the read goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{} // closed when conn is abandoned
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	url          string
	readLimit    int64
	reconnect    bool
	maxReconnect int
	dialer       *ws.Dialer

	onFrame func([]byte)
	onState func(ConnState)

	logger *slog.Logger
}

func newConnection(cfg Config, logger *slog.Logger, onFrame func([]byte), onState func(ConnState)) *connection {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 1
	}
	return &connection{
		sendCh:       make(chan []byte, size),
		done:         make(chan struct{}),
		url:          cfg.URL,
		readLimit:    cfg.ReadLimit,
		reconnect:    cfg.Reconnect,
		maxReconnect: cfg.MaxReconnect,
		dialer:       &ws.Dialer{HandshakeTimeout: dialWait},
		onFrame:      onFrame,
		onState:      onState,
		logger:       logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(ctx context.Context) error {
	conn, err := c.dialOnce(ctx)
	if err != nil {
		return err
	}
	if !c.attach(conn) {
		_ = conn.Close()
		return ErrClosed
	}
	return nil
}

func (c *connection) dialOnce(ctx context.Context) (*ws.Conn, error) {
	if _, err := url.Parse(c.url); err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}
	return conn, nil
}

// attach installs conn as the live socket and starts its loops.
func (c *connection) attach(conn *ws.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	c.onState(Connected)
	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
	return true
}

// writeLoop drains sendCh and writes messages to conn until conn is
// abandoned or the connection shuts down.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.lost(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.lost(conn)
				return
			}
		}
	}
}

// readLoop hands every text frame to onFrame until conn fails.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				c.logger.Info("WebSocket closed by server", "error", err)
			} else {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			c.lost(conn)
			return
		}
		c.onFrame(message)
	}
}

// lost abandons a failed socket. Only the first caller for the live socket
// does anything; the other loop of the same socket finds it already gone.
func (c *connection) lost(conn *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.stop)
	c.mu.Unlock()
	_ = conn.Close()

	if !c.reconnect {
		c.onState(Disconnected)
		return
	}
	go c.redial()
}

// redial attempts to re-establish the WebSocket connection with
// exponential backoff.
func (c *connection) redial() {
	c.onState(Connecting)

	backoff := time.Second
	for attempt := 1; attempt <= c.maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialWait)
		conn, err := c.dialOnce(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		if !c.attach(conn) {
			_ = conn.Close()
			return
		}
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", c.maxReconnect)
	c.onState(Disconnected)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}
