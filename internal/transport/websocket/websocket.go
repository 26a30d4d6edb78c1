// Package websocket is the raw WebSocket connection driver.
package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/vk/xfiber/internal/transport"
)

const closeGrace = time.Second

// Dialer connects with gorilla/websocket.
type Dialer struct {
	dialer *gws.Dialer
	header http.Header
	logger *slog.Logger
}

// NewDialer creates a Dialer. header is sent with the opening handshake.
func NewDialer(header http.Header, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{dialer: gws.DefaultDialer, header: header, logger: logger.With("driver", "websocket")}
}

// Dial implements transport.Dialer. The handshake and read loop run on their
// own goroutine.
func (d *Dialer) Dial(ctx context.Context, url string, l transport.Listener) error {
	go d.run(ctx, url, l)
	return nil
}

func (d *Dialer) run(ctx context.Context, url string, l transport.Listener) {
	ws, _, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		d.logger.Warn("Dial failed.", "url", url, "error", err)
		l.OnClose(err)
		return
	}
	conn := &Conn{ws: ws}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	d.logger.Debug("Connected.", "url", url)
	l.OnOpen(conn)

	for {
		kind, frame, err := ws.ReadMessage()
		if err != nil {
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				err = nil
			}
			l.OnClose(err)
			return
		}
		if kind != gws.TextMessage && kind != gws.BinaryMessage {
			continue
		}
		l.OnMessage(frame)
	}
}

// Conn is an open WebSocket connection. Writes are serialized.
type Conn struct {
	mu     sync.Mutex
	ws     *gws.Conn
	closed bool
}

// Write implements transport.Conn.
func (c *Conn) Write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(gws.TextMessage, frame)
}

// Close sends a close frame and closes the socket. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
	_ = c.ws.WriteControl(gws.CloseMessage, msg, time.Now().Add(closeGrace))
	return c.ws.Close()
}
