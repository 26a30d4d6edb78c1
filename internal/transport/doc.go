// Package transport implements the real-time protocol engine.
//
// An Engine owns one duplex connection obtained from a Dialer. Outbound
// communication envelopes are written immediately while the connection is
// open and queued in FIFO order otherwise; the queue is drained on open
// before any newer envelope is written.
//
// Inbound frames go through parsing and classification. Framing and routing
// failures are answered on the same channel with a validation envelope;
// communication envelopes are routed through the dispatcher to the emitter
// registered under the composed event key, and their result is published on
// the local bus.
package transport
