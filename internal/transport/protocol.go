package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/xfiber/internal/dispatcher"
	"github.com/vk/xfiber/internal/events"
	"github.com/vk/xfiber/internal/wire"
)

// inbound is the communication payload as received.
type inbound struct {
	Data    json.RawMessage `json:"data"`
	Scope   wire.Scope      `json:"scope"`
	Version string          `json:"version"`
	Service string          `json:"service"`
	Event   string          `json:"event"`
	Domain  string          `json:"domain"`
}

// HandleMessage parses, classifies and routes one inbound frame. Framing and
// routing failures are answered on the channel and return nil. A handler
// failure returns a CATCH_ERROR *wire.Error after the communication
// lifecycle event has been published.
func (e *Engine) HandleMessage(ctx context.Context, frame []byte) error {
	if !json.Valid(frame) {
		return e.reject(wire.EventHandshakeError, wire.CodeInvalidStructure, "WebSocket data must be a stringified object")
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(frame, &env); err != nil || env == nil {
		return e.rejectShape()
	}
	rawEvent, hasEvent := env["event"]
	rawPayload, hasPayload := env["payload"]
	if !hasEvent || !hasPayload {
		return e.rejectShape()
	}

	var event string
	if err := json.Unmarshal(rawEvent, &event); err != nil || !wire.IsKnownEvent(event) {
		return e.reject(wire.EventUnknownEvent, wire.CodeInvalidEventType, fmt.Sprintf("Event type '%s' unsupported", bytes.Trim(rawEvent, `"`)))
	}

	var kind wire.Kind
	if raw, ok := env["kind"]; ok {
		_ = json.Unmarshal(raw, &kind)
	}
	e.metrics.IncrementReceived(string(kind))
	e.logger.Debug("Inbound envelope.", "event", event, "kind", kind)

	switch kind {
	case wire.KindHandshake:
		e.bus.Publish(events.Handshake, decode(rawPayload))
		return nil
	case wire.KindValidation:
		e.bus.Publish(events.Validation, decode(rawPayload))
		return nil
	case wire.KindCommunication:
		return e.route(ctx, event, rawPayload)
	default:
		return e.reject(wire.EventUnknownEventKind, wire.CodeInvalidEventType, fmt.Sprintf("Event kind '%s' not supported.", kind))
	}
}

func (e *Engine) route(ctx context.Context, event string, rawPayload json.RawMessage) error {
	var p *inbound
	if err := json.Unmarshal(rawPayload, &p); err != nil || p == nil {
		return e.rejectShape()
	}
	if p.Version == "" {
		p.Version = wire.DefaultVersion
	}

	if e.dispatcher == nil {
		return errors.New("transport: no dispatcher configured")
	}
	docs, err := e.dispatcher.Documents(p.Service, p.Domain)
	if err != nil {
		var nf *dispatcher.NotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("failed to route %s: %w", event, err)
		}
		if nf.Level == dispatcher.LevelService {
			return e.reject(wire.EventServiceNotFound, wire.CodeServiceNotFound,
				fmt.Sprintf("Service %q not found in business scheme collection.", p.Service))
		}
		return e.reject(wire.EventDomainNotFound, wire.CodeDomainNotFound,
			fmt.Sprintf("Domain %q not found in service %q.", p.Domain, p.Service))
	}

	key := wire.EventKey(event, p.Version, p.Event)
	desc, ok := docs.Emitter[key]
	if !ok {
		return e.reject(wire.EventEventNotFound, wire.CodeEventNotFound,
			fmt.Sprintf("Event name %q with version %q and type %q not found in domain %q in service %q.", p.Event, p.Version, event, p.Domain, p.Service))
	}

	defer e.bus.Publish(events.Communication, nil)

	result, err := e.dispatcher.InvokeEmitter(ctx, p.Service, p.Domain, desc, decode(p.Data))
	if err != nil {
		e.logger.Error("Emitter failed.", "key", key, "service", p.Service, "domain", p.Domain, "error", err)
		e.metrics.IncrementProtocolError(wire.CodeCatchError.Name())
		return &wire.Error{Code: wire.CodeCatchError, Message: err.Error(), Err: err}
	}
	e.bus.Publish(key, result)
	return nil
}

func (e *Engine) rejectShape() error {
	return e.reject(wire.EventInvalidDataStructure, wire.CodeInvalidStructure,
		"Invalid data structure. Structure must be object and contain event type with payload information.")
}

// reject answers the peer with a validation envelope.
func (e *Engine) reject(event string, code wire.Code, message string) error {
	e.metrics.IncrementProtocolError(code.Name())
	e.logger.Warn("Rejecting inbound message.", "event", event, "code", code.Name(), "message", message)
	if err := e.send(event, wire.KindValidation, wire.ErrorPayload{Code: code, Message: message}); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

func decode(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
