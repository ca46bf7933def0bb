package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/crawl"
	"github.com/JakeFAU/subsidy-portal/internal/matching"
	"github.com/JakeFAU/subsidy-portal/internal/normalize"
	"github.com/JakeFAU/subsidy-portal/internal/procurement"
	"github.com/JakeFAU/subsidy-portal/internal/ruleset"
	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"github.com/JakeFAU/subsidy-portal/internal/validate"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

// Crawler crawls the partner subsidy API.
type Crawler interface {
	Crawl(ctx context.Context, req crawl.PageRequest) (*crawl.Page, error)
	BatchCrawl(ctx context.Context, req crawl.BatchRequest) (*crawl.Batch, error)
}

// Procurement lists public procurement notices and results.
type Procurement interface {
	BidNotices(ctx context.Context, q procurement.Query) (*procurement.Listing, error)
	BidResults(ctx context.Context, q procurement.Query) (*procurement.Listing, error)
}

// Workflows is the workflow engine surface the handlers drive.
type Workflows interface {
	Start(ctx context.Context, workflowID string, params map[string]any) (*workflow.Handle, error)
	Cancel(ctx context.Context, executionID string) (workflow.Execution, error)
	Execution(ctx context.Context, id string) (workflow.Execution, error)
	Executions(ctx context.Context, f workflow.ExecutionFilter) ([]workflow.Execution, error)
	Workflow(ctx context.Context, id string) (workflow.Workflow, error)
	Workflows(ctx context.Context) ([]workflow.Workflow, error)
	Summaries(ctx context.Context) ([]workflow.Summary, error)
	CreateWorkflow(ctx context.Context, raw []byte) (workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options carries the middleware settings.
type Options struct {
	RequestTimeout time.Duration
	AuthEnabled    bool
	APIKey         string
}

// Deps are the services behind the handlers. Ready is optional.
type Deps struct {
	Crawler        Crawler
	Procurement    Procurement
	Workflows      Workflows
	Normalizer     *normalize.Normalizer
	NormalizeRules *ruleset.Registry[normalize.Rule]
	Validator      *validate.Validator
	ValidateRules  *ruleset.Registry[validate.Rule]
	Scorer         *matching.Scorer
	Preferences    *matching.Preferences
	Catalog        []matching.Subvention
	Ready          ReadinessCheck
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the portal services.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Catalog == nil {
		deps.Catalog = matching.DefaultCatalog()
	}
	if deps.Preferences == nil {
		deps.Preferences = matching.NewPreferences()
	}
	s := &Server{deps: deps, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.AuthEnabled {
			r.Use(s.apiKeyMiddleware(opts.APIKey))
		}
		r.Use(timeoutMiddleware(opts.RequestTimeout))

		r.Get("/crawl", s.crawlPage)
		r.Post("/crawl", s.crawlBatch)
		r.Get("/bid-notices", s.bidNotices)
		r.Get("/bid-results", s.bidResults)
		r.Get("/mapping/industry", s.industryMapping)
		r.Get("/mapping/area", s.areaMapping)

		r.Get("/normalize", s.normalizeInfo)
		r.Post("/normalize", s.normalize)
		r.Get("/validate", s.validateInfo)
		r.Post("/validate", s.validate)

		r.Get("/workflow", s.workflowQuery)
		r.Post("/workflow", s.workflowCommand)
		r.Delete("/workflow", s.deleteWorkflow)

		r.Get("/recommendations", s.recommendations)
		r.Post("/recommendations", s.recommendationAction)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
