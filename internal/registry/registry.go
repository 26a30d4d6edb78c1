package registry

import (
	"context"

	"github.com/vk/xfiber/internal/wire"
)

// Scope governs which execution context is built for a call.
type Scope = wire.Scope

const (
	ScopePublic  = wire.ScopePublic
	ScopePrivate = wire.ScopePrivate
)

// ControllerHandler serves a local request/response call.
type ControllerHandler func(ctx context.Context, agents Agents, call *CallContext, args any) (any, error)

// EmitterHandler serves an inbound communication event. data is the decoded
// payload.data value.
type EmitterHandler func(ctx context.Context, agents Agents, call *CallContext, data any) (any, error)

// ViewHandler renders output from props. It must not mutate shared state.
type ViewHandler func(agents Agents, view ViewContext, props any) (any, error)

// ValidatorHandler builds a schema from the schema-builder primitive.
type ValidatorHandler func(builder SchemaBuilder, loc Localization) (Schema, error)

// ControllerDescriptor is a registered controller method.
type ControllerDescriptor struct {
	Scope   Scope
	Handler ControllerHandler
}

// EmitterDescriptor is a registered inbound event handler. It is stored
// under the key wire.EventKey(EventType, Version, Name).
type EmitterDescriptor struct {
	Name      string
	EventType string
	Scope     Scope
	Version   string
	Handler   EmitterHandler
}

// Key returns the composed event key the descriptor is addressed by.
func (d EmitterDescriptor) Key() string {
	return wire.EventKey(d.EventType, d.Version, d.Name)
}

// Dictionary is an arbitrary-depth string tree. Leaves are strings and inner
// nodes are Dictionary values.
type Dictionary map[string]any

// Persistence selects whether a domain store survives restarts.
type Persistence string

const (
	PersistencePersist Persistence = "persist"
	PersistenceVanish  Persistence = "vanish"
)

// StorageKind selects the backend of a persisted store.
type StorageKind string

const (
	StorageLocal   StorageKind = "local"
	StorageSession StorageKind = "session"
)

// StoreDescriptor describes the state store of a domain.
type StoreDescriptor struct {
	Persistence Persistence
	Storage     StorageKind
	Version     int
	// Hydrate restores persisted state when the store is created. When false
	// the store starts from Initial and is only restored on Rehydrate.
	Hydrate bool
	Initial func() map[string]any
}

// Documents is the document set of one domain.
type Documents struct {
	Controller   map[string]ControllerDescriptor
	Emitter      map[string]EmitterDescriptor
	Dictionaries map[string]Dictionary
	Store        *StoreDescriptor
	Views        map[string]ViewHandler
	Validator    map[string]ValidatorHandler
	Helper       map[string]any
}

func newDocuments() *Documents {
	return &Documents{
		Controller:   make(map[string]ControllerDescriptor),
		Emitter:      make(map[string]EmitterDescriptor),
		Dictionaries: make(map[string]Dictionary),
		Views:        make(map[string]ViewHandler),
		Validator:    make(map[string]ValidatorHandler),
		Helper:       make(map[string]any),
	}
}

// Domains maps domain names to their document set.
type Domains map[string]*Documents

// Services is the registry itself: service name -> domains.
type Services map[string]Domains

// Count returns the number of services and the total number of domains.
func (s Services) Count() (services, domains int) {
	for _, d := range s {
		domains += len(d)
	}
	return len(s), domains
}
