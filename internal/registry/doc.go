// Package registry provides the central in-memory mapping that business
// modules are registered into.
//
// The Registry is a three-level mapping: service name -> domain name ->
// Documents. A Documents value holds everything one domain contributes:
// controllers, emitter (event handler) descriptors, dictionaries, an optional
// store descriptor, views, validators and helpers.
//
// The Loader owns the registry lifecycle. Init creates an empty registry,
// SetBusinessLogic populates it from an ordered list of declarative
// ServiceStructure values, and Destroy discards it. Outside the Init/Destroy
// window every query fails with ErrNotInitialized, so "not loaded" can never
// be mistaken for "loaded but empty".
//
// The package also declares the contracts handlers are invoked with (Agents,
// CallContext and the capability interfaces) so that the dispatcher, the
// transport engine and the agents implementation can depend on it without
// depending on each other.
package registry
