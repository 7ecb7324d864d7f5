// Package api serves the classification hierarchy over HTTP: lookups,
// full-text search, scope exports, ingest control and probes.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emotu/nacex/internal/cache"
	"github.com/emotu/nacex/internal/config"
	"github.com/emotu/nacex/internal/health"
	"github.com/emotu/nacex/internal/jobs"
	"github.com/emotu/nacex/internal/ratelimit"
	"github.com/emotu/nacex/internal/runlog"
	"github.com/emotu/nacex/internal/store"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	cfg    config.AppConfig
	store  *store.Store
	runner *jobs.Runner
	runs   *runlog.Log
	cache  cache.Cache
	health *health.Manager

	refreshLimiter *ratelimit.Limiter
	trustedProxies *proxyList
	startTime      time.Time
}

// NewServer wires the API surface. cache may be nil to disable
// response caching; runs may be nil when run history is not kept.
func NewServer(cfg config.AppConfig, st *store.Store, runner *jobs.Runner, runs *runlog.Log, c cache.Cache, hm *health.Manager) *Server {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Server{
		cfg:            cfg,
		store:          st,
		runner:         runner,
		runs:           runs,
		cache:          c,
		health:         hm,
		refreshLimiter: ratelimit.New(ratelimit.DefaultConfig()),
		trustedProxies: newProxyList(cfg.TrustedProxies),
		startTime:      time.Now(),
	}
}

// Routes builds the router. Probes and metrics sit outside the
// traced/limited API group so scrapes never show up in traces.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverer)
	r.Use(otelMiddleware("nacex"))

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RequestsPerMinute, time.Minute))

		r.Get("/taxonomy", s.handleTaxonomy)
		r.Get("/sections", s.handleSections)
		r.Get("/sections/{code}", s.handleSection)
		r.Get("/divisions/{code}", s.handleDivision)
		r.Get("/groups/{code}", s.handleGroup)
		r.Get("/classes/{code}", s.handleClass)
		r.Get("/search", s.handleSearch)
		r.Get("/scopes", s.handleScopes)
		r.Get("/scopes/{code}", s.handleScope)
		r.Get("/validation", s.handleValidation)
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleRuns)

		r.With(s.requireToken).Post("/refresh", s.handleRefresh)

		r.Get("/export/scopes.json", s.handleExportFile("scopes.json", "application/json"))
		r.Get("/export/scopes.csv", s.handleExportFile("scopes.csv", "text/csv"))
	})

	return r
}
