package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/storage"
)

var (
	// ErrNotInitialized is returned before Init and after Destroy.
	ErrNotInitialized = errors.New("store: stores collection not set")
	// ErrStoreNotFound is returned when a domain has no store.
	ErrStoreNotFound = errors.New("store: not found")
)

// Key returns the store key of a (service, domain) pair.
func Key(service, domain string) string {
	return service + "{{" + domain + "}}"
}

// Service creates and holds the domain stores.
type Service struct {
	mu      sync.RWMutex
	stores  map[string]*Store
	root    *registry.RootStore
	i18n    registry.I18n
	local   storage.Backend
	session storage.Backend
	logger  *slog.Logger
}

// NewService creates a store service. local backs "persist"/"local" stores
// and session backs "persist"/"session" stores.
func NewService(local, session storage.Backend, i18n registry.I18n, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{local: local, session: session, i18n: i18n, logger: logger}
}

// Init creates the root store and one store per domain that declares one.
func (s *Service) Init(ctx context.Context, services registry.Services) error {
	s.mu.Lock()
	s.stores = make(map[string]*Store)
	s.root = &registry.RootStore{I18n: s.i18n}
	s.mu.Unlock()

	for service, domains := range services {
		for domain := range domains {
			if err := s.CreateStore(ctx, services, service, domain); err != nil {
				return err
			}
		}
	}
	s.logger.Info("Service StoreService has been started.", "stores", s.count())
	return nil
}

// Destroy drops every store. Persisted snapshots stay in their backend.
func (s *Service) Destroy() {
	s.mu.Lock()
	s.stores = nil
	s.root = nil
	s.mu.Unlock()
}

func (s *Service) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stores)
}

// CreateStore builds the store of (service, domain). Domains without a store
// descriptor are skipped.
func (s *Service) CreateStore(ctx context.Context, services registry.Services, service, domain string) error {
	domains, ok := services[service]
	if !ok {
		return fmt.Errorf("service storage %q not found", service)
	}
	docs, ok := domains[domain]
	if !ok {
		return fmt.Errorf("domain storage %q not found", domain)
	}
	if docs.Store == nil {
		return nil
	}

	desc := *docs.Store
	if desc.Persistence == "" {
		desc.Persistence = registry.PersistencePersist
	}
	if desc.Storage == "" {
		desc.Storage = registry.StorageLocal
	}
	if desc.Version == 0 {
		desc.Version = 1
	}

	var backend storage.Backend
	switch desc.Persistence {
	case registry.PersistencePersist:
		switch desc.Storage {
		case registry.StorageLocal:
			backend = s.local
		case registry.StorageSession:
			backend = s.session
		default:
			return fmt.Errorf("store %s: unknown storage kind %q", Key(service, domain), desc.Storage)
		}
	case registry.PersistenceVanish:
	default:
		return fmt.Errorf("store %s: unknown persistence kind %q", Key(service, domain), desc.Persistence)
	}

	key := Key(service, domain)
	st := newStore(key, desc, backend, s.logger)
	if desc.Hydrate {
		if err := st.Rehydrate(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stores == nil {
		return ErrNotInitialized
	}
	s.stores[key] = st
	s.logger.Debug("Store created.", "store", key, "persistence", desc.Persistence, "storage", desc.Storage)
	return nil
}

// GetStore returns the store of (service, domain).
func (s *Service) GetStore(service, domain string) (*Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stores == nil {
		return nil, ErrNotInitialized
	}
	st, ok := s.stores[Key(service, domain)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, Key(service, domain))
	}
	return st, nil
}

// RootStore returns the shared root store, or nil outside Init/Destroy.
func (s *Service) RootStore() *registry.RootStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}
