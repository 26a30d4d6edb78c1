// Package app contains the core application logic. It wires configuration,
// manifests, the registry, stores, the dispatcher, the capability agents and
// the transport engine together, and owns their lifecycle. It is decoupled
// from any specific entrypoint like a CLI.
package app
