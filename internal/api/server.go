package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/sitepublish/internal/api/handler"
	mw "github.com/edvin/sitepublish/internal/api/middleware"
	"github.com/edvin/sitepublish/internal/core"
)

//go:embed docs/swagger.json
var swaggerJSON []byte

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	db             Pinger
	temporalClient temporalclient.Client
}

func NewServer(logger zerolog.Logger, db Pinger, temporalClient temporalclient.Client, services *core.Services) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		db:             db,
		temporalClient: temporalClient,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// API documentation (no auth required)
	s.router.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(swaggerJSON)
	})
	s.router.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(scalarHTML))
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.services.APIKey))

		tenant := handler.NewTenant(s.services.Tenant)
		deployment := handler.NewDeployment(s.services.Deployment)
		domain := handler.NewDomain(s.services.Domain)

		// Tenant registry (platform keys only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAllTenants())
			r.With(mw.RequireScope("tenants", "read")).Get("/tenants", tenant.List)
			r.With(mw.RequireScope("tenants", "write")).Post("/tenants", tenant.Create)
		})

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Use(mw.RequireTenantAccess("tenantID"))

			r.With(mw.RequireScope("tenants", "read")).Get("/", tenant.Get)
			r.With(mw.RequireScope("tenants", "write")).Delete("/", tenant.Delete)
			r.With(mw.RequireScope("tenants", "write")).Put("/artifact", tenant.UpdateArtifact)

			r.With(mw.RequireScope("deployments", "write")).Post("/deployments", deployment.StartPublish)
			r.With(mw.RequireScope("deployments", "read")).Get("/deployments", deployment.ListByTenant)
			r.With(mw.RequireScope("deployments", "read")).Get("/deployments/current", deployment.Current)

			r.With(mw.RequireScope("domains", "write")).Post("/domains", domain.Connect)
			r.With(mw.RequireScope("domains", "read")).Get("/domains", domain.ListByTenant)
		})

		// Owner tenant is checked in the handlers once the row is loaded.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireScope("deployments", "read"))
			r.Get("/deployments/{id}", deployment.Get)
			r.Get("/deployments/{id}/status", deployment.Status)
			r.Get("/deployments/{id}/stream", deployment.Stream)
		})

		r.With(mw.RequireScope("domains", "read")).Get("/domains/{id}", domain.Get)
		r.With(mw.RequireScope("domains", "read")).Get("/domains/{id}/verification", domain.Verification)
		r.With(mw.RequireScope("domains", "write")).Post("/domains/{id}/verify", domain.Verify)
		r.With(mw.RequireScope("domains", "write")).Post("/domains/{id}/primary", domain.SetPrimary)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.db.Ping(ctx); err != nil {
		checks["core_db"] = err.Error()
		healthy = false
	} else {
		checks["core_db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

const scalarHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Sitepublish API</title>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
  <script id="api-reference" data-url="/docs/openapi.json"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`
