// Package storage provides the key/value persistence areas of the runtime.
//
// Two areas exist, mirroring a browser's storage model:
//
//   - session: process-local and volatile (Memory)
//   - local: durable across restarts (SQLite)
//
// Both implement Backend for raw byte values and are wrapped by Area to give
// business modules a string key/value view.
package storage
