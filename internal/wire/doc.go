// Package wire defines the textual message format exchanged over the duplex
// real-time channel.
//
// Every frame is a JSON envelope of the form
//
//	{"event": "...", "kind": "handshake|validation|communication", "payload": {...}}
//
// The package owns the fixed event vocabulary, the error catalogue reported
// back over the channel, and the deterministic event key used to address
// routable events both locally and in the registry.
package wire
