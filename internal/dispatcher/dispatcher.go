// Package dispatcher resolves (service, domain, name) triples against the
// registry and invokes the resolved handlers with the capability agents and
// a per-call execution context.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vk/xfiber/internal/metrics"
	"github.com/vk/xfiber/internal/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vk/xfiber/internal/dispatcher"

// Registry is the read side of the registry loader.
type Registry interface {
	Services() (registry.Services, error)
}

// RootStores yields the current root store. It may return nil before the
// stores are created.
type RootStores interface {
	RootStore() *registry.RootStore
}

// Options configures a Dispatcher.
type Options struct {
	Registry Registry
	Roots    RootStores
	Sessions registry.SessionProvider
	Builder  registry.SchemaBuilder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// DefaultLanguage is used when neither the caller nor the root store
	// names a language.
	DefaultLanguage string
}

// Dispatcher is safe for concurrent use once agents are bound.
type Dispatcher struct {
	reg      Registry
	roots    RootStores
	sessions registry.SessionProvider
	builder  registry.SchemaBuilder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	language string

	mu     sync.RWMutex
	agents registry.Agents
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		reg:      opts.Registry,
		roots:    opts.Roots,
		sessions: opts.Sessions,
		builder:  opts.Builder,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		tracer:   otel.Tracer(tracerName),
		language: opts.DefaultLanguage,
	}
	if d.sessions == nil {
		d.sessions = registry.EmptySession{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.language == "" {
		d.language = "en"
	}
	return d
}

// Bind sets the agents passed into every handler invocation.
func (d *Dispatcher) Bind(agents registry.Agents) {
	d.mu.Lock()
	d.agents = agents
	d.mu.Unlock()
}

// Agents returns the bound agents.
func (d *Dispatcher) Agents() registry.Agents {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.agents
}

// RootStore returns the current root store or nil.
func (d *Dispatcher) RootStore() *registry.RootStore {
	if d.roots == nil {
		return nil
	}
	return d.roots.RootStore()
}

// Services returns the registry.
func (d *Dispatcher) Services() (registry.Services, error) {
	return d.reg.Services()
}

// Documents resolves the document set of (service, domain).
func (d *Dispatcher) Documents(service, domain string) (*registry.Documents, error) {
	services, err := d.reg.Services()
	if err != nil {
		return nil, err
	}
	domains, ok := services[service]
	if !ok {
		return nil, notFound(LevelService, service, "", services)
	}
	docs, ok := domains[domain]
	if !ok {
		return nil, notFound(LevelDomain, domain, service, domains)
	}
	return docs, nil
}

// CallContext builds the execution context of a call with the given scope.
func (d *Dispatcher) CallContext(ctx context.Context, scope registry.Scope) (*registry.CallContext, error) {
	call := &registry.CallContext{Scope: scope, Store: d.RootStore()}
	if scope == registry.ScopePrivate {
		user, err := d.sessions.Session(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve session: %w", err)
		}
		call.User = user
	}
	return call, nil
}

// InvokeEmitter runs the handler of an emitter descriptor with data.
func (d *Dispatcher) InvokeEmitter(ctx context.Context, service, domain string, desc registry.EmitterDescriptor, data any) (any, error) {
	call, err := d.CallContext(ctx, desc.Scope)
	if err != nil {
		return nil, err
	}
	return d.invoke(ctx, "emitter", desc.Key(), service, domain, func(ctx context.Context) (any, error) {
		if desc.Handler == nil {
			return nil, fmt.Errorf("emitter %q has no handler", desc.Key())
		}
		return desc.Handler(ctx, d.Agents(), call, data)
	})
}

func (d *Dispatcher) invoke(ctx context.Context, kind, name, service, domain string, fn func(ctx context.Context) (any, error)) (result any, err error) {
	ctx, span := d.tracer.Start(ctx, kind+" "+name, trace.WithAttributes(
		attribute.String("xfiber.service", service),
		attribute.String("xfiber.domain", domain),
		attribute.String("xfiber.handler", name),
	))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %q panicked: %v", kind, name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if d.metrics != nil {
			d.metrics.ObserveHandler(kind, start, err)
		}
		span.End()
	}()
	return fn(ctx)
}

// GetController returns the controller proxy of (service, domain).
func (d *Dispatcher) GetController(service, domain string) (*ControllerProxy, error) {
	docs, err := d.Documents(service, domain)
	if err != nil {
		return nil, err
	}
	return &ControllerProxy{d: d, service: service, domain: domain, methods: docs.Controller}, nil
}

// ControllerProxy exposes exactly the controller methods of one domain.
type ControllerProxy struct {
	d       *Dispatcher
	service string
	domain  string
	methods map[string]registry.ControllerDescriptor
}

// Names returns the registered method names, sorted.
func (p *ControllerProxy) Names() []string {
	return sortedKeys(p.methods)
}

// Invoke calls the named method with args.
func (p *ControllerProxy) Invoke(ctx context.Context, name string, args any) (any, error) {
	desc, ok := p.methods[name]
	if !ok {
		return nil, notFound(LevelController, name, p.service+"/"+p.domain, p.methods)
	}
	call, err := p.d.CallContext(ctx, desc.Scope)
	if err != nil {
		return nil, err
	}
	p.d.logger.Debug("Invoking controller.", "service", p.service, "domain", p.domain, "method", name, "scope", desc.Scope)
	return p.d.invoke(ctx, "controller", name, p.service, p.domain, func(ctx context.Context) (any, error) {
		if desc.Handler == nil {
			return nil, fmt.Errorf("controller %q has no handler", name)
		}
		return desc.Handler(ctx, p.d.Agents(), call, args)
	})
}

// GetValidator returns the validator proxy of (service, domain).
func (d *Dispatcher) GetValidator(service, domain string) (*ValidatorProxy, error) {
	docs, err := d.Documents(service, domain)
	if err != nil {
		return nil, err
	}
	return &ValidatorProxy{d: d, service: service, domain: domain, validators: docs.Validator}, nil
}

// ValidatorProxy exposes exactly the validators of one domain.
type ValidatorProxy struct {
	d          *Dispatcher
	service    string
	domain     string
	validators map[string]registry.ValidatorHandler
}

// Names returns the registered validator names, sorted.
func (p *ValidatorProxy) Names() []string {
	return sortedKeys(p.validators)
}

// Invoke builds the named schema.
func (p *ValidatorProxy) Invoke(name string) (registry.Schema, error) {
	handler, ok := p.validators[name]
	if !ok {
		return nil, notFound(LevelValidator, name, p.service+"/"+p.domain, p.validators)
	}
	if p.d.builder == nil {
		return nil, fmt.Errorf("validator %q: no schema builder configured", name)
	}
	return handler(p.d.builder, p.d)
}

// View renders the named view of (service, domain) with props.
func (d *Dispatcher) View(service, domain, view string, props any) (any, error) {
	docs, err := d.Documents(service, domain)
	if err != nil {
		return nil, err
	}
	handler, ok := docs.Views[view]
	if !ok {
		return nil, notFound(LevelView, view, service+"/"+domain, docs.Views)
	}
	return handler(d.Agents(), registry.ViewContext{RootStore: d.RootStore()}, props)
}

// GetHelper returns the named helper of (service, domain).
func (d *Dispatcher) GetHelper(service, domain, name string) (any, error) {
	docs, err := d.Documents(service, domain)
	if err != nil {
		return nil, err
	}
	helper, ok := docs.Helper[name]
	if !ok {
		return nil, notFound(LevelHelper, name, service+"/"+domain, docs.Helper)
	}
	return helper, nil
}

// GetDictionary returns the dictionary of (service, domain) for language.
// An empty language selects the root store default. A missing language falls
// back to the root store fallback language.
func (d *Dispatcher) GetDictionary(service, domain, language string) (registry.Dictionary, error) {
	docs, err := d.Documents(service, domain)
	if err != nil {
		return nil, err
	}

	fallback := d.language
	if root := d.RootStore(); root != nil {
		if root.I18n.FallbackLanguage != "" {
			fallback = root.I18n.FallbackLanguage
		}
		if language == "" {
			language = root.I18n.DefaultLanguage
		}
	}
	if language == "" {
		language = d.language
	}

	if dict, ok := docs.Dictionaries[language]; ok {
		return dict, nil
	}
	if dict, ok := docs.Dictionaries[fallback]; ok {
		d.logger.Debug("Dictionary language missing, using fallback.", "service", service, "domain", domain, "language", language, "fallback", fallback)
		return dict, nil
	}
	return nil, notFound(LevelDictionary, language, service+"/"+domain, docs.Dictionaries)
}

// GetResource walks the dot-separated key through the dictionary of
// (service, domain). The walk stops at the first string it meets, which is
// returned with every {{name}} placeholder replaced from substitutions.
func (d *Dispatcher) GetResource(service, domain, key string, substitutions map[string]string, language string) (string, error) {
	dict, err := d.GetDictionary(service, domain, language)
	if err != nil {
		return "", err
	}

	node := map[string]any(dict)
	for _, segment := range strings.Split(key, ".") {
		next, ok := node[segment]
		if !ok {
			return "", notFound(LevelResource, key, service+"/"+domain, node)
		}
		if s, ok := next.(string); ok {
			return substitute(s, substitutions), nil
		}
		child, ok := asTree(next)
		if !ok {
			return "", fmt.Errorf("%s/%s %q: %w", service, domain, key, ErrNotString)
		}
		node = child
	}
	return "", fmt.Errorf("%s/%s %q: %w", service, domain, key, ErrNotString)
}

func asTree(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case registry.Dictionary:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

func substitute(s string, substitutions map[string]string) string {
	for name, value := range substitutions {
		s = strings.ReplaceAll(s, "{{"+name+"}}", value)
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
