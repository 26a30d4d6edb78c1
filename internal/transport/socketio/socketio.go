// Package socketio is the socket.io connection driver. Envelopes travel as
// the argument of the "message" event.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/vk/xfiber/internal/transport"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// MessageEvent is the socket.io event carrying envelopes.
const MessageEvent = "message"

// Options configures a Dialer.
type Options struct {
	Namespace          string
	Path               string
	InsecureSkipVerify bool
	Logger             *slog.Logger
}

// Dialer connects through a socket.io manager over the WebSocket transport.
type Dialer struct {
	opts   Options
	logger *slog.Logger
}

// NewDialer creates a Dialer.
func NewDialer(opts Options) *Dialer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	return &Dialer{opts: opts, logger: logger.With("driver", "socketio")}
}

// Dial implements transport.Dialer. rawURL uses the ws or wss scheme; the
// manager is given the matching http or https base address.
func (d *Dialer) Dial(ctx context.Context, rawURL string, l transport.Listener) error {
	base, err := BaseURL(rawURL)
	if err != nil {
		return err
	}

	opts := socket.DefaultOptions()
	if d.opts.Path != "" {
		opts.SetPath(d.opts.Path)
	}
	if d.opts.InsecureSkipVerify {
		d.logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(base, opts)
	io := manager.Socket(d.opts.Namespace, opts)
	conn := &Conn{io: io}

	io.On(types.EventName("connect"), func(...any) {
		d.logger.Info("Connected.", "sid", io.Id())
		l.OnOpen(conn)
	})
	io.On(types.EventName(MessageEvent), func(args ...any) {
		for _, arg := range args {
			frame, err := Frame(arg)
			if err != nil {
				d.logger.Warn("Dropping undecodable message.", "error", err)
				continue
			}
			l.OnMessage(frame)
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		l.OnClose(firstError(errs, "connect error"))
	})
	io.Once(types.EventName("disconnect"), func(reasons ...any) {
		if len(reasons) > 0 {
			d.logger.Info("Disconnected.", "reason", reasons[0])
		}
		l.OnClose(nil)
	})

	context.AfterFunc(ctx, func() { _ = conn.Close() })

	d.logger.Debug("Initiating connection...", "url", base, "namespace", d.opts.Namespace)
	io.Connect()
	return nil
}

// Conn is a connected socket.io client socket.
type Conn struct {
	once sync.Once
	io   *socket.Socket
}

// Write implements transport.Conn. The frame is emitted as a string.
func (c *Conn) Write(frame []byte) error {
	c.io.Emit(MessageEvent, string(frame))
	return nil
}

// Close disconnects the socket. It is idempotent.
func (c *Conn) Close() error {
	c.once.Do(func() { c.io.Disconnect() })
	return nil
}

// BaseURL converts a ws/wss address into the http/https base address of
// the socket.io manager.
func BaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// Frame turns a socket.io event argument into a text frame. Peers may send
// either the stringified envelope or the decoded object.
func Frame(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, errors.New("empty message argument")
	default:
		return json.Marshal(v)
	}
}

func firstError(args []any, fallback string) error {
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			return err
		}
		return fmt.Errorf("%s: %v", fallback, args[0])
	}
	return errors.New(fallback)
}
