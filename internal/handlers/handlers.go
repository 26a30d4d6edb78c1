// Package handlers holds the named Go functions that declarative manifests
// bind to. A manifest refers to a handler by name; the manifest loader looks
// the name up here and fails fast when it is missing or of the wrong kind.
package handlers

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/xfiber/internal/registry"
)

// Module is implemented by every business module compiled into the binary.
type Module interface {
	Register(h *Handlers)
}

// Kind tells which registry slot a handler can fill.
type Kind string

const (
	KindController Kind = "controller"
	KindEmitter    Kind = "emitter"
	KindView       Kind = "view"
	KindValidator  Kind = "validator"
	KindHelper     Kind = "helper"
	KindStore      Kind = "store"
)

// Handlers holds all the registered handlers.
type Handlers struct {
	controllers map[string]registry.ControllerHandler
	emitters    map[string]registry.EmitterHandler
	views       map[string]registry.ViewHandler
	validators  map[string]registry.ValidatorHandler
	helpers     map[string]any
	stores      map[string]func() map[string]any
}

// New creates an empty handler table.
func New() *Handlers {
	return &Handlers{
		controllers: make(map[string]registry.ControllerHandler),
		emitters:    make(map[string]registry.EmitterHandler),
		views:       make(map[string]registry.ViewHandler),
		validators:  make(map[string]registry.ValidatorHandler),
		helpers:     make(map[string]any),
		stores:      make(map[string]func() map[string]any),
	}
}

func register[T any](m map[string]T, kind Kind, name string, fn T) {
	if _, exists := m[name]; exists {
		panic(fmt.Sprintf("%s handler with name '%s' already registered", kind, name))
	}
	slog.Debug("Registering handler.", "kind", kind, "name", name)
	m[name] = fn
}

// RegisterController registers a controller method handler.
func (h *Handlers) RegisterController(name string, fn registry.ControllerHandler) {
	register(h.controllers, KindController, name, fn)
}

// RegisterEmitter registers an inbound event handler.
func (h *Handlers) RegisterEmitter(name string, fn registry.EmitterHandler) {
	register(h.emitters, KindEmitter, name, fn)
}

// RegisterView registers a view handler.
func (h *Handlers) RegisterView(name string, fn registry.ViewHandler) {
	register(h.views, KindView, name, fn)
}

// RegisterValidator registers a validator handler.
func (h *Handlers) RegisterValidator(name string, fn registry.ValidatorHandler) {
	register(h.validators, KindValidator, name, fn)
}

// RegisterHelper registers an arbitrary callable.
func (h *Handlers) RegisterHelper(name string, fn any) {
	register(h.helpers, KindHelper, name, fn)
}

// RegisterStore registers an initial-state factory for a store descriptor.
func (h *Handlers) RegisterStore(name string, fn func() map[string]any) {
	register(h.stores, KindStore, name, fn)
}

// Controller looks up a controller handler.
func (h *Handlers) Controller(name string) (registry.ControllerHandler, bool) {
	fn, ok := h.controllers[name]
	return fn, ok
}

// Emitter looks up an emitter handler.
func (h *Handlers) Emitter(name string) (registry.EmitterHandler, bool) {
	fn, ok := h.emitters[name]
	return fn, ok
}

// View looks up a view handler.
func (h *Handlers) View(name string) (registry.ViewHandler, bool) {
	fn, ok := h.views[name]
	return fn, ok
}

// Validator looks up a validator handler.
func (h *Handlers) Validator(name string) (registry.ValidatorHandler, bool) {
	fn, ok := h.validators[name]
	return fn, ok
}

// Helper looks up a helper.
func (h *Handlers) Helper(name string) (any, bool) {
	fn, ok := h.helpers[name]
	return fn, ok
}

// Store looks up an initial-state factory.
func (h *Handlers) Store(name string) (func() map[string]any, bool) {
	fn, ok := h.stores[name]
	return fn, ok
}

// Names returns the sorted handler names of a kind.
func (h *Handlers) Names(kind Kind) []string {
	var names []string
	switch kind {
	case KindController:
		names = keys(h.controllers)
	case KindEmitter:
		names = keys(h.emitters)
	case KindView:
		names = keys(h.views)
	case KindValidator:
		names = keys(h.validators)
	case KindHelper:
		names = keys(h.helpers)
	case KindStore:
		names = keys(h.stores)
	}
	sort.Strings(names)
	return names
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
