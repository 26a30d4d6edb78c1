package wire

import "encoding/json"

// Kind classifies an envelope.
type Kind string

const (
	KindHandshake     Kind = "handshake"
	KindValidation    Kind = "validation"
	KindCommunication Kind = "communication"
)

// Scope is the access level carried by communication payloads.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopePrivate Scope = "private"
)

// DefaultVersion is the protocol version used when a payload omits one.
const DefaultVersion = "v1"

// Envelope is the outbound wire wrapper.
type Envelope struct {
	Event   string `json:"event"`
	Kind    Kind   `json:"kind"`
	Payload any    `json:"payload"`
}

// Marshal encodes the envelope into a single text frame.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Payload is the body of a communication envelope. SessionID and RoomID are
// only present for the addressing modes that need them.
type Payload struct {
	Data      any    `json:"data"`
	Scope     Scope  `json:"scope"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Event     string `json:"event"`
	Domain    string `json:"domain"`
	SessionID string `json:"sessionId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
}

// Normalize fills the protocol defaults for scope and version.
func (p *Payload) Normalize() {
	if p.Scope == "" {
		p.Scope = ScopePublic
	}
	if p.Version == "" {
		p.Version = DefaultVersion
	}
}

// ErrorPayload is the body of handshake and validation error envelopes.
type ErrorPayload struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}
