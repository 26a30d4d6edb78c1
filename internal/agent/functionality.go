package agent

import "github.com/vk/xfiber/internal/registry"

// FunctionalityOptions wires the facades of the functionality agent.
type FunctionalityOptions struct {
	Discovery registry.Discovery
	WS        registry.Realtime
	Router    registry.Router
	Storage   registry.Storage
	Auth      registry.Auth
}

// Functionality implements registry.FunctionalityAgent.
type Functionality struct {
	discovery registry.Discovery
	ws        registry.Realtime
	router    registry.Router
	storage   registry.Storage
	auth      registry.Auth
}

// NewFunctionality creates the functionality agent. Discovery should be
// scoped to the keys business modules may read.
func NewFunctionality(opts FunctionalityOptions) *Functionality {
	return &Functionality{
		discovery: opts.Discovery,
		ws:        opts.WS,
		router:    opts.Router,
		storage:   opts.Storage,
		auth:      opts.Auth,
	}
}

func (f *Functionality) Discovery() registry.Discovery { return f.discovery }
func (f *Functionality) WS() registry.Realtime         { return f.ws }
func (f *Functionality) Route() registry.Router        { return f.router }
func (f *Functionality) Storage() registry.Storage     { return f.storage }
func (f *Functionality) Auth() registry.Auth           { return f.auth }

// Storage exposes the local and session areas.
type Storage struct {
	local   registry.KeyValue
	session registry.KeyValue
}

// NewStorage creates the storage facade.
func NewStorage(local, session registry.KeyValue) *Storage {
	return &Storage{local: local, session: session}
}

// Local returns the persistent area.
func (s *Storage) Local() registry.KeyValue { return s.local }

// Session returns the volatile area.
func (s *Storage) Session() registry.KeyValue { return s.session }
