// Package web provides the HTTP API: import runs, part queries, category
// listings and datasheet fetches.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/partstock-io/partstock/internal/config"
	"github.com/partstock-io/partstock/internal/datasheet"
	"github.com/partstock-io/partstock/internal/importer"
	"github.com/partstock-io/partstock/internal/store"
	"github.com/partstock-io/partstock/internal/web/middleware"
)

// PartStore is the storage surface the API needs. *store.Store satisfies
// it; tests substitute an in-memory fake.
type PartStore interface {
	importer.KeyedLookup

	GetPart(ctx context.Context, id uuid.UUID) (*store.Part, error)
	ListParts(ctx context.Context, search string, limit, offset int) ([]*store.Part, error)
	DeletePart(ctx context.Context, id uuid.UUID) (bool, error)
	ListCategories(ctx context.Context) ([]store.CategoryCount, error)
	SetDatasheet(ctx context.Context, id uuid.UUID, sha string) error
}

// Pinger reports database liveness. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the API's dependencies and per-process run state.
type Server struct {
	cfg      *config.Config
	parts    PartStore
	importer *importer.Importer
	limiter  *importer.RunLimiter
	fetcher  *datasheet.Fetcher
	db       Pinger
	httpSrv  *http.Server

	// lastRun is the most recent import summary, kept so the error rows
	// can be exported after the run response has been consumed.
	mu      sync.Mutex
	lastRun *importer.Summary
}

// NewServer wires the API against its collaborators.
func NewServer(cfg *config.Config, parts PartStore, fetcher *datasheet.Fetcher, db Pinger) *Server {
	return &Server{
		cfg:      cfg,
		parts:    parts,
		importer: importer.New(parts, slog.Default()),
		limiter:  importer.NewRunLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWait),
		fetcher:  fetcher,
		db:       db,
	}
}

// DrainImports blocks until in-flight import runs finish, for graceful
// shutdown.
func (s *Server) DrainImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveImports reports the number of import runs in flight.
func (s *Server) ActiveImports() int {
	return s.limiter.ActiveCount()
}

// Routes builds the router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(s.cfg.Server.RequestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)

		r.Post("/imports", s.handleImport)
		r.Get("/imports/last/errors", s.handleImportErrors)

		r.Get("/parts", s.handleListParts)
		r.Get("/parts/{id}", s.handleGetPart)
		r.Delete("/parts/{id}", s.handleDeletePart)
		r.Post("/parts/{id}/datasheet", s.handleFetchDatasheet)

		r.Get("/categories", s.handleListCategories)
	})

	return r
}

// Start runs the HTTP server until it is shut down or the listener fails.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
