package registry

import (
	"context"
	"net/http"

	"github.com/vk/xfiber/internal/events"
)

// Agents is passed into every handler invocation. It gives the handler
// narrow, indirect access to the runtime.
type Agents struct {
	Fn     FunctionalityAgent
	Schema SchemaAgent
}

// CallContext is the execution context built for a controller or emitter
// call. User is nil for public scope and a session record for private scope.
type CallContext struct {
	Scope Scope
	Store *RootStore
	User  map[string]any
}

// ViewContext is handed to view handlers.
type ViewContext struct {
	RootStore *RootStore
}

// I18n carries the localization settings.
type I18n struct {
	DefaultLanguage    string
	FallbackLanguage   string
	SupportedLanguages []string
}

// RootStore is the process-wide store shared by all domains.
type RootStore struct {
	I18n I18n
}

// SessionProvider populates the user record of private-scope calls. It is
// the extension point for binding an authenticated session.
type SessionProvider interface {
	Session(ctx context.Context) (map[string]any, error)
}

// EmptySession is the default SessionProvider. It yields an empty record.
type EmptySession struct{}

// Session implements SessionProvider.
func (EmptySession) Session(context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

// Schema is a compiled validation schema.
type Schema interface {
	Validate(v any) error
}

// SchemaBuilder is the primitive validator handlers build schemas with.
type SchemaBuilder interface {
	// Compile compiles a JSON Schema document.
	Compile(document string) (Schema, error)
	// Reflect derives a schema from a Go struct value.
	Reflect(v any) (Schema, error)
}

// Localization is the single resource lookup capability given to validators.
type Localization interface {
	GetResource(service, domain, key string, substitutions map[string]string, language string) (string, error)
}

// ControllerAPI is the capability object returned for a (service, domain).
type ControllerAPI interface {
	Names() []string
	Invoke(ctx context.Context, name string, args any) (any, error)
}

// ValidatorAPI is the validator capability object returned for a (service, domain).
type ValidatorAPI interface {
	Names() []string
	Invoke(name string) (Schema, error)
}

// StateStore is a domain store as seen by handlers.
type StateStore interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	State() map[string]any
}

// SchemaAgent resolves other registered capabilities.
type SchemaAgent interface {
	Localization
	Services() (Services, error)
	GetController(service, domain string) (ControllerAPI, error)
	GetValidator(service, domain string) (ValidatorAPI, error)
	GetDictionary(service, domain, language string) (Dictionary, error)
	GetStore(service, domain string) (StateStore, error)
}

// Discovery reads configuration values with defaults.
type Discovery interface {
	GetMandatory(name string) (string, error)
	GetString(name, def string) string
	GetInt(name string, def int) int
	GetBool(name string, def bool) bool
	GetStringSlice(name string, def []string) []string
}

// Message is an outbound communication event.
type Message struct {
	Service string
	Domain  string
	Event   string
	Version string
	Scope   Scope
	Data    any
}

// Realtime exposes the send and listen side of the duplex channel.
type Realtime interface {
	On(eventType, version, event string, l events.Listener) events.Subscription
	Once(eventType, version, event string, l events.Listener) events.Subscription
	SendToSession(sessionID string, msg Message) error
	SendToRoom(roomID string, msg Message) error
	SendToService(msg Message) error
}

// RequestOptions configures a Router request.
type RequestOptions struct {
	Method  string
	Scope   string
	Version string
	Headers http.Header
	Params  map[string]string
	Queries map[string]string
	Data    any
}

// Response is the decoded result of a Router request.
type Response struct {
	Status  int
	Headers http.Header
	Data    any
}

// Router performs HTTP requests against service routes.
type Router interface {
	Request(ctx context.Context, service, domain, route string, opts RequestOptions) (*Response, error)
}

// KeyValue is a string key/value storage area.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Storage exposes the local (persistent) and session (volatile) areas.
type Storage interface {
	Local() KeyValue
	Session() KeyValue
}

// Auth exposes the token pair of the current session.
type Auth interface {
	SetTokens(access, refresh string)
	// TokenPayload decodes the claims of the access token into dst.
	TokenPayload(dst any) error
}

// FunctionalityAgent groups the runtime facades.
type FunctionalityAgent interface {
	Discovery() Discovery
	WS() Realtime
	Route() Router
	Storage() Storage
	Auth() Auth
}
