// Package app contains the application setup for the order tracking service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordertrack/ordertrack/internal/broadcast"
	"github.com/ordertrack/ordertrack/internal/config"
	"github.com/ordertrack/ordertrack/internal/service"
	"github.com/ordertrack/ordertrack/internal/status"
	"github.com/ordertrack/ordertrack/internal/store"
	"github.com/ordertrack/ordertrack/internal/transport/rest"
	"github.com/ordertrack/ordertrack/internal/transport/ws"
	pkgconfig "github.com/ordertrack/ordertrack/pkg/config"
	"github.com/ordertrack/ordertrack/pkg/messaging"
	"github.com/ordertrack/ordertrack/pkg/server"
)

type Dependencies struct {
	OrderService service.OrderService
	Registry     *broadcast.Registry
	Dispatcher   *broadcast.Dispatcher
	Logger       *slog.Logger
}

// SetupDependencies wires the store, transition engine, broadcast fan-out
// and service together. dbPool is only consulted for the postgres
// backend; relay may be nil when the broker relay is disabled.
func SetupDependencies(cfg *config.Config, dbPool *pgxpool.Pool, relay messaging.Publisher, logger *slog.Logger) *Dependencies {
	engine := status.NewEngine(cfg.Store.StrictTransitions)

	var orderStore store.OrderStore
	if cfg.Store.Backend == pkgconfig.StoreBackendPostgres {
		orderStore = store.NewPgStore(dbPool, engine, cfg.Store.OnePerOwner)
	} else {
		orderStore = store.NewMemStore(engine, cfg.Store.OnePerOwner)
	}

	registry := broadcast.NewRegistry()
	dispatcher := broadcast.NewDispatcher(registry, logger)
	orderService := service.NewService(orderStore, dispatcher, relay, logger)

	return &Dependencies{
		OrderService: orderService,
		Registry:     registry,
		Dispatcher:   dispatcher,
		Logger:       logger,
	}
}

// SetupHttpHandler initializes the HTTP routes for the application.
// Used by E2E tests to set up the server with the production middleware.
func SetupHttpHandler(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps, cfg)
	return mux
}

// wireRoutes sets up the HTTP routes for the application.
func wireRoutes(mux *chi.Mux, deps *Dependencies, cfg *config.Config) {
	orderHandler := rest.NewHandler(deps.OrderService, deps.Logger)
	orderHandler.RegisterRoutes(mux)

	wsHandler := ws.NewHandler(deps.OrderService, deps.Registry, deps.Dispatcher,
		cfg.WS.SendBuffer, cfg.WS.WriteTimeout, deps.Logger)
	wsHandler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the application.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps, cfg)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}
