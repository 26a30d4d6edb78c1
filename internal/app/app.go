package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vk/xfiber/internal/agent"
	"github.com/vk/xfiber/internal/config"
	"github.com/vk/xfiber/internal/ctxlog"
	"github.com/vk/xfiber/internal/dispatcher"
	"github.com/vk/xfiber/internal/handlers"
	"github.com/vk/xfiber/internal/manifest"
	"github.com/vk/xfiber/internal/metrics"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/storage"
	"github.com/vk/xfiber/internal/store"
	"github.com/vk/xfiber/internal/transport"
	"github.com/vk/xfiber/internal/transport/socketio"
	"github.com/vk/xfiber/internal/transport/websocket"
	"github.com/vk/xfiber/internal/validation"
)

// Transport drivers selectable through adapters.ws.driver.
const (
	DriverWebSocket = "websocket"
	DriverSocketIO  = "socketio"
)

const routerTimeout = 30 * time.Second

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	config *Config
	logger *slog.Logger

	discovery  *config.Discovery
	handlers   *handlers.Handlers
	structures []registry.ServiceStructure

	local   storage.Backend
	session storage.Backend

	loader     *registry.Loader
	stores     *store.Service
	dispatcher *dispatcher.Dispatcher
	engine     *transport.Engine
	auth       *agent.Auth

	prometheus *prometheus.Registry
	metrics    *metrics.Metrics
	httpServer *http.Server

	closeOnce sync.Once
	closeErr  error
}

// NewApp is the constructor for the main application. It returns a fully
// wired App with its own isolated logger, handler table and metrics
// registry. Configuration and manifest errors are fatal and make it panic.
func NewApp(outW io.Writer, cfg *Config, modules ...handlers.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	discovery, err := config.New(config.Options{File: cfg.ConfigFile})
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	h := handlers.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(h)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	structures, err := manifest.NewLoader(h).Load(ctx, cfg.ModulesPath)
	if err != nil {
		panic(fmt.Errorf("failed to load manifests: %w", err))
	}

	local, session, err := openStorage(ctx, discovery)
	if err != nil {
		panic(err)
	}

	a := &App{
		config:     cfg,
		logger:     logger,
		discovery:  discovery,
		handlers:   h,
		structures: structures,
		local:      local,
		session:    session,
		prometheus: prometheus.NewRegistry(),
	}
	a.prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.prometheus)
	a.wire()
	return a
}

// wire builds the runtime graph. The dispatcher is created before the
// engine and the agents are bound once both exist.
func (a *App) wire() {
	a.loader = registry.NewLoader(a.logger)
	a.stores = store.NewService(a.local, a.session, config.Localization(a.discovery), a.logger)
	a.dispatcher = dispatcher.New(dispatcher.Options{
		Registry: a.loader,
		Roots:    a.stores,
		Builder:  validation.NewBuilder(),
		Metrics:  a.metrics,
		Logger:   a.logger,
	})

	a.engine = transport.New(transport.Options{
		Discovery:  a.discovery,
		Dialer:     a.dialer(),
		Dispatcher: a.dispatcher,
		Metrics:    a.metrics,
		Logger:     a.logger,
	})

	a.auth = agent.NewAuth(storage.NewArea(a.local, ""), a.logger)
	router := agent.NewRouter(&http.Client{Timeout: routerTimeout}, agent.BaseURL(a.discovery), a.auth, a.logger)
	a.dispatcher.Bind(registry.Agents{
		Fn: agent.NewFunctionality(agent.FunctionalityOptions{
			Discovery: a.discovery.Scoped(),
			WS:        a.engine,
			Router:    router,
			Storage:   agent.NewStorage(storage.NewArea(a.local, "local."), storage.NewArea(a.session, "session.")),
			Auth:      a.auth,
		}),
		Schema: agent.NewSchema(a.dispatcher, a.stores),
	})
}

func (a *App) dialer() transport.Dialer {
	driver := a.discovery.GetString("adapters.ws.driver", DriverWebSocket)
	switch driver {
	case DriverWebSocket:
		return websocket.NewDialer(nil, a.logger)
	case DriverSocketIO:
		return socketio.NewDialer(socketio.Options{
			Namespace: a.discovery.GetString("adapters.ws.connect.namespace", "/"),
			Path:      a.discovery.GetString("adapters.ws.connect.path", ""),
			Logger:    a.logger,
		})
	}
	panic(fmt.Errorf("unknown websocket driver %q: must be %q or %q", driver, DriverWebSocket, DriverSocketIO))
}

// openStorage returns the local and session backends. Local state lives in
// sqlite when strategies.database.enable is set and in memory otherwise.
func openStorage(ctx context.Context, d *config.Discovery) (local, session storage.Backend, err error) {
	session = storage.NewMemory()
	if !d.GetBool("strategies.database.enable", false) {
		ctxlog.FromContext(ctx).Debug("Database strategy disabled, local storage is in memory.")
		return storage.NewMemory(), session, nil
	}
	name := d.GetString("strategies.database.name", "xfiber.db")
	db, err := storage.OpenSQLite(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local storage: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Local storage opened.", "database", name)
	return db, session, nil
}

// Start loads the registry, creates the stores and connects the transport.
func (a *App) Start(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	a.loader.Init()
	if err := a.loader.SetBusinessLogic(a.structures); err != nil {
		return fmt.Errorf("failed to register business logic: %w", err)
	}
	services, err := a.loader.Services()
	if err != nil {
		return err
	}
	if err := a.stores.Init(ctx, services); err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}
	if err := a.auth.Restore(ctx); err != nil {
		a.logger.Warn("Failed to restore auth tokens.", "error", err)
	}

	connecting, err := a.engine.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	nServices, nDomains := services.Count()
	a.logger.Info("Application started.", "services", nServices, "domains", nDomains, "transport", connecting)
	return nil
}

// Close tears the runtime down in reverse order of Start. It is safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.engine.Destroy()
		a.stores.Destroy()
		a.loader.Destroy()
		for _, b := range []storage.Backend{a.local, a.session} {
			if err := b.Close(); err != nil && a.closeErr == nil {
				a.closeErr = err
			}
		}
		a.logger.Debug("Application closed.")
	})
	return a.closeErr
}

// Dispatcher returns the dispatcher.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

// Engine returns the transport engine.
func (a *App) Engine() *transport.Engine {
	return a.engine
}

// Stores returns the store service.
func (a *App) Stores() *store.Service {
	return a.stores
}

// Handlers returns the handler table. This is primarily for testing.
func (a *App) Handlers() *handlers.Handlers {
	return a.handlers
}
