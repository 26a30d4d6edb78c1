package wire

import "strings"

// Addressing modes for outbound communication.
const (
	EventSessionToSession = "session:to:session"
	EventSessionToRoom    = "session:to:room"
	EventSessionToService = "session:to:service"
)

// Server-originated events.
const (
	EventHandshake            = "handshake"
	EventHandshakeError       = "handshake.error"
	EventServiceNotFound      = "validation.error.service_not_found"
	EventDomainNotFound       = "validation.error.domain_not_found"
	EventEventNotFound        = "validation.error.event_not_found"
	EventInvalidDataStructure = "validation.error.invalid_data_structure"
	EventUnknownEvent         = "validation.error.unknown_event"
	EventUnknownEventKind     = "validation.error.unknown_event_kind"
)

const eventKeySeparator = ":"

// knownEvents is the vocabulary accepted on inbound envelopes.
var knownEvents = map[string]struct{}{
	EventHandshake:        {},
	EventHandshakeError:   {},
	EventServiceNotFound:  {},
	EventDomainNotFound:   {},
	EventEventNotFound:    {},
	EventSessionToSession: {},
	EventSessionToRoom:    {},
	EventSessionToService: {},
}

// IsKnownEvent reports whether event belongs to the inbound vocabulary.
func IsKnownEvent(event string) bool {
	_, ok := knownEvents[event]
	return ok
}

// IsAddressingMode reports whether event is one of the outbound addressing
// modes a business event can be registered under.
func IsAddressingMode(event string) bool {
	switch event {
	case EventSessionToSession, EventSessionToRoom, EventSessionToService:
		return true
	}
	return false
}

// EventKey composes the routing key "type:version:event". It is used both to
// register local listeners and to look up emitter descriptors.
func EventKey(eventType, version, event string) string {
	return strings.Join([]string{eventType, version, event}, eventKeySeparator)
}
