package agent

import (
	"github.com/vk/xfiber/internal/dispatcher"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/store"
)

// Schema implements registry.SchemaAgent over the dispatcher and the stores.
type Schema struct {
	dispatcher *dispatcher.Dispatcher
	stores     *store.Service
}

// NewSchema creates the schema agent. stores may be nil when no domain
// declares a store.
func NewSchema(d *dispatcher.Dispatcher, stores *store.Service) *Schema {
	return &Schema{dispatcher: d, stores: stores}
}

// Services returns the registry.
func (s *Schema) Services() (registry.Services, error) {
	return s.dispatcher.Services()
}

// GetController returns the controller capability of (service, domain).
func (s *Schema) GetController(service, domain string) (registry.ControllerAPI, error) {
	p, err := s.dispatcher.GetController(service, domain)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetValidator returns the validator capability of (service, domain).
func (s *Schema) GetValidator(service, domain string) (registry.ValidatorAPI, error) {
	p, err := s.dispatcher.GetValidator(service, domain)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetDictionary returns the dictionary of (service, domain) for language.
// An empty language selects the root store default.
func (s *Schema) GetDictionary(service, domain, language string) (registry.Dictionary, error) {
	return s.dispatcher.GetDictionary(service, domain, language)
}

// GetResource resolves a dictionary resource.
func (s *Schema) GetResource(service, domain, key string, substitutions map[string]string, language string) (string, error) {
	return s.dispatcher.GetResource(service, domain, key, substitutions, language)
}

// GetStore returns the state store of (service, domain).
func (s *Schema) GetStore(service, domain string) (registry.StateStore, error) {
	if s.stores == nil {
		return nil, store.ErrNotInitialized
	}
	st, err := s.stores.GetStore(service, domain)
	if err != nil {
		return nil, err
	}
	return st, nil
}
