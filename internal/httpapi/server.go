package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-catalog-api/authz"
	"github.com/goliatone/go-catalog-api/internal/store"
	"github.com/goliatone/go-catalog-api/pagination"
	"github.com/goliatone/go-catalog-api/repositorycache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of the API.
type Deps struct {
	Products *repositorycache.CachedRepository[*store.Product]
	Users    *repositorycache.CachedRepository[*store.User]
	Gate     *authz.Gate
	Auth     *authz.JWTAuthenticator
	Pages    pagination.Config

	// Health reports whether the service can serve requests. Nil means
	// always healthy.
	Health func(ctx context.Context) error

	// Metrics serves /metrics. Defaults to the default prometheus registry.
	Metrics http.Handler

	Logger zerolog.Logger
}

// API serves the catalog and user routes.
type API struct {
	products *repositorycache.CachedRepository[*store.Product]
	users    *repositorycache.CachedRepository[*store.User]
	gate     *authz.Gate
	auth     *authz.JWTAuthenticator
	pages    pagination.Config
	health   func(ctx context.Context) error
	metrics  http.Handler
	logger   zerolog.Logger
}

// New validates deps and returns the API.
func New(deps Deps) (*API, error) {
	switch {
	case deps.Products == nil:
		return nil, errors.New("httpapi: products repository is required")
	case deps.Users == nil:
		return nil, errors.New("httpapi: users repository is required")
	case deps.Gate == nil:
		return nil, errors.New("httpapi: gate is required")
	case deps.Auth == nil:
		return nil, errors.New("httpapi: authenticator is required")
	}

	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}
	if deps.Pages == (pagination.Config{}) {
		deps.Pages = pagination.DefaultConfig()
	}

	return &API{
		products: deps.Products,
		users:    deps.Users,
		gate:     deps.Gate,
		auth:     deps.Auth,
		pages:    deps.Pages,
		health:   deps.Health,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "httpapi").Logger(),
	}, nil
}

// Handler returns the routed handler with logging and recovery applied.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics)

	mux.Handle("GET /products", a.authenticated(a.handleListProducts))
	mux.Handle("GET /products/{id}", a.authenticated(a.handleGetProduct))

	mux.Handle("GET /users/{customerId}", a.authenticated(a.handleListUsers))
	mux.Handle("POST /users/{customerId}", a.authenticated(a.handleCreateUser))
	mux.Handle("GET /users/{customerId}/{userId}", a.authenticated(a.handleGetUser))
	mux.Handle("PUT /users/{customerId}/{userId}", a.authenticated(a.handleUpdateUser))
	mux.Handle("DELETE /users/{customerId}/{userId}", a.authenticated(a.handleDeleteUser))

	return a.logRequests(a.recoverPanics(mux))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Server wraps http.Server with a context bound lifecycle.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewServer returns a server for handler on addr.
func NewServer(addr string, handler http.Handler, shutdownTimeout time.Duration, logger zerolog.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// ListenAndServe runs until ctx ends, then drains in-flight requests for at
// most the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.logger.Info().Msg("stopped")
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
