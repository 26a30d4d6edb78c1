package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/xfiber/internal/events"
	"github.com/vk/xfiber/internal/metrics"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/wire"
)

// ErrClosed is returned by sends after the engine is closed.
var ErrClosed = errors.New("transport: engine closed")

// State is the connection state observed by the engine.
type State int

const (
	StateDisconnected State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Dispatcher resolves and invokes emitters for routed messages.
type Dispatcher interface {
	Documents(service, domain string) (*registry.Documents, error)
	InvokeEmitter(ctx context.Context, service, domain string, desc registry.EmitterDescriptor, data any) (any, error)
}

// Options configures an Engine.
type Options struct {
	Discovery  registry.Discovery
	Dialer     Dialer
	Dispatcher Dispatcher
	Bus        *events.Bus
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Engine is the transport protocol engine. It is safe for concurrent use.
type Engine struct {
	id         string
	discovery  registry.Discovery
	dialer     Dialer
	dispatcher Dispatcher
	bus        *events.Bus
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// mu serializes the queue, the state and writes to conn.
	mu     sync.Mutex
	state  State
	conn   Conn
	queue  [][]byte
	config Config
	cancel context.CancelFunc
	// gen identifies the current dial. Callbacks from older dials are ignored.
	gen uint64
}

// New creates an Engine in the Disconnected state.
func New(opts Options) *Engine {
	e := &Engine{
		id:         uuid.NewString(),
		discovery:  opts.Discovery,
		dialer:     opts.Dialer,
		dispatcher: opts.Dispatcher,
		bus:        opts.Bus,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		config:     DefaultConfig(),
	}
	if e.bus == nil {
		e.bus = events.NewBus()
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("engine", e.id)
	return e
}

// ID returns the engine instance id.
func (e *Engine) ID() string {
	return e.id
}

// State returns the current connection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Config returns the configuration resolved by the last Init.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// Queued returns the number of envelopes waiting for the connection.
func (e *Engine) Queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Init resolves the connection configuration and starts connecting. It
// returns false without connecting when the adapter is disabled, and an
// INVALID_PROTOCOL *wire.Error when the protocol is neither ws nor wss.
func (e *Engine) Init(ctx context.Context) (bool, error) {
	cfg := LoadConfig(e.discovery)

	e.mu.Lock()
	e.config = cfg
	state := e.state
	e.mu.Unlock()

	if !cfg.Enable {
		e.logger.Info("Websocket adapter disabled, not connecting.")
		return false, nil
	}
	if cfg.Protocol != ProtocolPlain && cfg.Protocol != ProtocolSecure {
		return false, wire.NewError(wire.CodeInvalidProtocol, "Websocket protocol must be '%s' or '%s' but define - '%s'", ProtocolPlain, ProtocolSecure, cfg.Protocol)
	}
	if state == StateClosed {
		return false, ErrClosed
	}
	if e.dialer == nil {
		return false, errors.New("transport: no dialer configured")
	}

	dialCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		cancel()
		return false, ErrClosed
	}
	if e.cancel != nil {
		e.cancel()
	}
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			e.logger.Debug("Error closing previous connection.", "error", err)
		}
		e.conn = nil
		e.state = StateDisconnected
	}
	e.cancel = cancel
	e.gen++
	l := &listener{e: e, gen: e.gen}
	e.mu.Unlock()

	url := cfg.URL()
	e.logger.Info("Connecting.", "url", url)
	if err := e.dialer.Dial(dialCtx, url, l); err != nil {
		cancel()
		return false, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return true, nil
}

// Destroy closes the connection and drops every queued envelope. The engine
// is closed afterwards and every send fails with ErrClosed.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			e.logger.Debug("Error closing connection.", "error", err)
		}
		e.conn = nil
	}
	dropped := len(e.queue)
	e.queue = nil
	e.state = StateClosed
	e.metrics.MessagesDropped.Add(float64(dropped))
	e.metrics.QueueDepth.Set(0)
	e.logger.Info("Engine destroyed.", "dropped", dropped)
}

// listener adapts the Dialer callbacks of one dial onto the engine.
type listener struct {
	e   *Engine
	gen uint64
}

func (l *listener) OnOpen(conn Conn) {
	l.e.open(conn, l.gen)
}

func (l *listener) OnMessage(frame []byte) {
	if !l.e.current(l.gen) {
		l.e.logger.Debug("Dropping frame from stale connection.")
		return
	}
	if err := l.e.HandleMessage(context.Background(), frame); err != nil {
		l.e.logger.Error("Inbound message failed.", "error", err)
	}
}

func (l *listener) OnClose(err error) {
	l.e.closed(err, l.gen)
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen
}

func (e *Engine) open(conn Conn, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateClosed || gen != e.gen {
		_ = conn.Close()
		return
	}
	e.conn = conn
	e.state = StateOpen

	before := len(e.queue)
	if err := e.drainLocked(); err != nil {
		e.logger.Warn("Failed to drain queued envelope.", "error", err, "remaining", len(e.queue))
	}
	e.logger.Info("Connection open.", "drained", before-len(e.queue))
}

// drainLocked writes queued frames in order and stops at the first failure,
// leaving the failed frame at the head of the queue.
func (e *Engine) drainLocked() error {
	for len(e.queue) > 0 {
		if err := e.conn.Write(e.queue[0]); err != nil {
			e.metrics.QueueDepth.Set(float64(len(e.queue)))
			return err
		}
		e.queue = e.queue[1:]
		e.metrics.MessagesSent.Inc()
	}
	e.metrics.QueueDepth.Set(0)
	return nil
}

func (e *Engine) closed(err error, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateClosed || gen != e.gen {
		return
	}
	e.state = StateClosed
	e.conn = nil
	if err != nil {
		e.logger.Warn("Connection closed.", "error", err, "queued", len(e.queue))
		return
	}
	e.logger.Info("Connection closed.", "queued", len(e.queue))
}

// write sends frame when open and queues it otherwise. While older frames
// are still queued the frame goes behind them, so delivery stays FIFO.
func (e *Engine) write(frame []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.state == StateClosed:
		return ErrClosed
	case e.state == StateOpen && e.conn != nil:
		if err := e.drainLocked(); err != nil {
			e.logger.Warn("Queue still blocked, frame queued.", "error", err, "queued", len(e.queue)+1)
			e.enqueueLocked(frame)
			return nil
		}
		if err := e.conn.Write(frame); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		e.metrics.MessagesSent.Inc()
	default:
		e.enqueueLocked(frame)
	}
	return nil
}

func (e *Engine) enqueueLocked(frame []byte) {
	e.queue = append(e.queue, frame)
	e.metrics.MessagesQueued.Inc()
	e.metrics.QueueDepth.Set(float64(len(e.queue)))
}

func (e *Engine) send(event string, kind wire.Kind, payload any) error {
	frame, err := wire.Envelope{Event: event, Kind: kind, Payload: payload}.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", event, err)
	}
	return e.write(frame)
}

func (e *Engine) sendCommunication(event string, msg registry.Message, sessionID, roomID string) error {
	p := wire.Payload{
		Data:      msg.Data,
		Scope:     msg.Scope,
		Version:   msg.Version,
		Service:   msg.Service,
		Event:     msg.Event,
		Domain:    msg.Domain,
		SessionID: sessionID,
		RoomID:    roomID,
	}
	p.Normalize()
	return e.send(event, wire.KindCommunication, p)
}

// SendToSession sends msg to one session.
func (e *Engine) SendToSession(sessionID string, msg registry.Message) error {
	return e.sendCommunication(wire.EventSessionToSession, msg, sessionID, "")
}

// SendToRoom sends msg to every session of a room.
func (e *Engine) SendToRoom(roomID string, msg registry.Message) error {
	return e.sendCommunication(wire.EventSessionToRoom, msg, "", roomID)
}

// SendToService sends msg to the service itself.
func (e *Engine) SendToService(msg registry.Message) error {
	return e.sendCommunication(wire.EventSessionToService, msg, "", "")
}

// On listens on the composed event key of (eventType, version, event).
func (e *Engine) On(eventType, version, event string, l events.Listener) events.Subscription {
	return e.bus.On(eventKey(eventType, version, event), l)
}

// Once listens on the composed event key for a single delivery.
func (e *Engine) Once(eventType, version, event string, l events.Listener) events.Subscription {
	return e.bus.Once(eventKey(eventType, version, event), l)
}

// Subscribe listens on a lifecycle topic or a composed event key.
func (e *Engine) Subscribe(topic string, l events.Listener) events.Subscription {
	return e.bus.On(topic, l)
}

// Unsubscribe removes a listener added with On, Once or Subscribe.
func (e *Engine) Unsubscribe(s events.Subscription) {
	e.bus.Off(s)
}

func eventKey(eventType, version, event string) string {
	if version == "" {
		version = wire.DefaultVersion
	}
	return wire.EventKey(eventType, version, event)
}
