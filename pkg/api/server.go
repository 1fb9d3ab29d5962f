// Package api exposes the checklist over HTTP.
//
// The surface mirrors the store: taxa CRUD and search, per-taxon
// distributions, nested-set tree queries, plus an import trigger that runs
// the full pipeline. Responses are JSON; search and tree reads go through
// the response cache.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/florakb/florakb/pkg/cache"
	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/pipeline"
	"github.com/florakb/florakb/pkg/store"
)

// Store is the persistence surface the handlers read and write.
// *store.Store satisfies it; tests use an in-memory fake.
type Store interface {
	TaxonByID(ctx context.Context, id int64) (checklist.Name, error)
	SearchTaxa(ctx context.Context, f store.TaxonFilter) ([]checklist.Name, int, error)
	CreateTaxon(ctx context.Context, n checklist.Name) error
	UpdateTaxon(ctx context.Context, n checklist.Name) error
	DeleteTaxon(ctx context.Context, id int64) error
	DistributionsByTaxon(ctx context.Context, id int64) ([]checklist.Distribution, error)
	TreeRoot(ctx context.Context) (store.TreeNode, error)
	Subtree(ctx context.Context, id int64, maxDepth int) ([]store.TreeNode, error)
	Ancestors(ctx context.Context, id int64) ([]store.TreeNode, error)
	Children(ctx context.Context, id int64) ([]store.TreeNode, error)
}

// Importer triggers a checklist import. *pipeline.Runner satisfies it.
type Importer interface {
	Execute(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Options configures a Server beyond its two collaborators.
type Options struct {
	// Cache holds serialized search/tree responses. Nil disables caching.
	Cache    cache.Cache
	Keyer    cache.Keyer
	CacheTTL time.Duration

	// User/Password enable basic auth on everything except /health.
	// An empty user leaves the API open.
	User     string
	Password string

	Logger *log.Logger
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	store    Store
	importer Importer
	cache    cache.Cache
	keyer    cache.Keyer
	cacheTTL time.Duration
	log      *log.Logger
	user     string
	password string
}

// NewServer creates and wires the HTTP server.
func NewServer(st Store, importer Importer, opts Options) *Server {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Server{
		store:    st,
		importer: importer,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		cacheTTL: opts.CacheTTL,
		log:      opts.Logger,
		user:     opts.User,
		password: opts.Password,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.user != "" {
			r.Use(basicAuth(s.user, s.password))
		}

		r.Get("/taxa", s.handleSearchTaxa)
		r.Post("/taxa", s.handleCreateTaxon)
		r.Get("/taxa/{id}", s.handleGetTaxon)
		r.Put("/taxa/{id}", s.handleUpdateTaxon)
		r.Delete("/taxa/{id}", s.handleDeleteTaxon)
		r.Get("/taxa/{id}/distributions", s.handleDistributions)

		r.Get("/tree/root", s.handleTreeRoot)
		r.Get("/tree/{id}/subtree", s.handleSubtree)
		r.Get("/tree/{id}/ancestors", s.handleAncestors)
		r.Get("/tree/{id}/children", s.handleChildren)

		r.Post("/import", s.handleImport)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
