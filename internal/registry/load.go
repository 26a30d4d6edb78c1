package registry

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrNotInitialized is returned by every query made outside the Init/Destroy
// window.
var ErrNotInitialized = errors.New("registry: schema collection not initialized")

// Loader builds and owns the Registry.
type Loader struct {
	mu       sync.RWMutex
	services Services
	logger   *slog.Logger
}

// NewLoader creates a Loader. The registry does not exist until Init is called.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Init creates an empty registry, discarding any previous one.
func (l *Loader) Init() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = make(Services)
	l.logger.Debug("Registry initialized.")
}

// Destroy discards the registry. Every subsequent query fails.
func (l *Loader) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = nil
	l.logger.Debug("Registry destroyed.")
}

// Services returns the registry or ErrNotInitialized.
func (l *Loader) Services() (Services, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.services == nil {
		return nil, ErrNotInitialized
	}
	return l.services, nil
}

// SetBusinessLogic walks structures in order and registers every domain.
// Registering a (service, domain) pair again replaces its document set.
func (l *Loader) SetBusinessLogic(structures []ServiceStructure) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.services == nil {
		return ErrNotInitialized
	}

	for _, service := range structures {
		for _, domain := range service.Domains {
			l.setDomain(service.Name, domain)
		}
	}

	services, domains := l.services.Count()
	l.logger.Debug("Business logic registered.", "services", services, "domains", domains)
	return nil
}

func (l *Loader) setDomain(service string, structure DomainStructure) {
	domains, ok := l.services[service]
	if !ok {
		domains = make(Domains)
		l.services[service] = domains
	}

	if _, exists := domains[structure.Name]; exists {
		l.logger.Warn("Domain registered twice, replacing previous documents.", "service", service, "domain", structure.Name)
	}

	src := structure.Documents
	docs := newDocuments()

	for name, c := range src.Controller {
		docs.Controller[name] = c
	}
	for key, e := range src.Emitter {
		docs.Emitter[key] = e
	}
	for _, d := range src.Dictionary {
		for _, lang := range d.Language {
			docs.Dictionaries[lang] = d.Dictionary
		}
	}
	if src.Store != nil {
		store := *src.Store
		docs.Store = &store
	}
	for _, v := range src.Views {
		docs.Views[v.Name] = v.View
	}
	for name, v := range src.Validator {
		docs.Validator[name] = v
	}
	for name, h := range src.Helper {
		docs.Helper[name] = h
	}

	domains[structure.Name] = docs
	l.logger.Debug("Domain registered.",
		"service", service,
		"domain", structure.Name,
		"controllers", len(docs.Controller),
		"emitters", len(docs.Emitter),
		"dictionaries", len(docs.Dictionaries),
		"views", len(docs.Views),
		"validators", len(docs.Validator),
		"helpers", len(docs.Helper),
		"store", docs.Store != nil,
	)
}
