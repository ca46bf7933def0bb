// Package server wires the portal's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/api"
	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/JakeFAU/subsidy-portal/internal/config"
	"github.com/JakeFAU/subsidy-portal/internal/crawl"
	"github.com/JakeFAU/subsidy-portal/internal/dispatcher"
	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/id/uuid"
	"github.com/JakeFAU/subsidy-portal/internal/logging"
	"github.com/JakeFAU/subsidy-portal/internal/matching"
	"github.com/JakeFAU/subsidy-portal/internal/normalize"
	"github.com/JakeFAU/subsidy-portal/internal/policy/ratelimit"
	"github.com/JakeFAU/subsidy-portal/internal/procurement"
	"github.com/JakeFAU/subsidy-portal/internal/progress"
	progresssinks "github.com/JakeFAU/subsidy-portal/internal/progress/sinks"
	qmemory "github.com/JakeFAU/subsidy-portal/internal/queue/memory"
	"github.com/JakeFAU/subsidy-portal/internal/storage/memory"
	pgstore "github.com/JakeFAU/subsidy-portal/internal/storage/postgres"
	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"github.com/JakeFAU/subsidy-portal/internal/validate"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

const apiKeyHeader = "X-API-Key"

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	engine         *workflow.Engine
	dispatch       *dispatcher.Dispatcher
	janitor        *workflow.Janitor
	progressHub    *progress.Hub
	executions     *pgstore.ExecutionStore
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, version string) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Service:     cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
		zap.Bool("postgres", cfg.Database.DSN != ""),
	)

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.TracingSettings{
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      version,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	clk := clock.System()
	limiter := ratelimit.New(cfg.RateLimit.Limiter())

	partner := fetcher.New(
		fetcher.NewClient(cfg.HTTP.Timeout(), crawl.UserAgent),
		cfg.Retry.Partner,
		fetcher.WithWaiter(limiter),
		fetcher.WithLogger(logger.Named("fetcher.partner")),
	)
	publicData := fetcher.New(
		fetcher.NewClient(cfg.HTTP.Timeout(), procurement.UserAgent),
		cfg.Retry.PublicData,
		fetcher.WithWaiter(limiter),
		fetcher.WithLogger(logger.Named("fetcher.public_data")),
	)

	normalizer := normalize.New(logger)
	normalizeRules := normalize.NewRegistry()
	if path := cfg.Rules.NormalizeFile; path != "" {
		sources, err := normalize.LoadFile(path, normalizer, normalizeRules)
		if err != nil {
			return nil, fmt.Errorf("load normalize rules: %w", err)
		}
		logger.Info("normalize rules loaded", zap.String("path", path), zap.Strings("sources", sources))
	}
	validator, err := validate.New(logger)
	if err != nil {
		return nil, fmt.Errorf("validator init failed: %w", err)
	}

	if err := app.setupProgress(); err != nil {
		return nil, err
	}

	executions, ready, err := app.setupExecutions(ctx)
	if err != nil {
		return nil, err
	}

	if err := app.setupWorkflows(ctx, executions, clk); err != nil {
		return nil, err
	}

	app.apiServer = api.NewServer(
		api.Options{
			RequestTimeout: cfg.Server.RequestTimeout,
			AuthEnabled:    cfg.Auth.Enabled,
			APIKey:         cfg.Auth.APIKey,
		},
		api.Deps{
			Crawler:        crawl.NewService(cfg.CrawlService(), partner, logger),
			Procurement:    procurement.New(cfg.Upstream.PublicData, publicData, clk, logger),
			Workflows:      app.engine,
			Normalizer:     normalizer,
			NormalizeRules: normalizeRules,
			Validator:      validator,
			ValidateRules:  validate.NewRegistry(),
			Scorer:         matching.NewScorer(clk, cfg.Matching.FuzzyThreshold),
			Preferences:    matching.NewPreferences(),
			Ready:          ready,
			Logger:         logger,
		},
	)

	return app, nil
}

func (a *App) setupProgress() error {
	promSink, err := progresssinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("progress prometheus sink: %w", err)
	}
	a.progressHub = progress.NewHub(a.cfg.Progress, a.logger,
		progresssinks.NewLogSink(a.logger),
		promSink,
	)
	return nil
}

// setupExecutions picks the execution repository. Postgres is used when a
// DSN is configured; otherwise executions live in memory.
func (a *App) setupExecutions(ctx context.Context) (workflow.ExecutionRepository, api.ReadinessCheck, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("using in-memory execution store")
		return memory.NewExecutionStore(), nil, nil
	}
	store, err := pgstore.NewExecutionStore(ctx, a.cfg.Database.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres execution store: %w", err)
	}
	a.executions = store
	if a.cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
	}
	a.logger.Info("using postgres execution store")
	return store, store.Ping, nil
}

func (a *App) setupWorkflows(ctx context.Context, executions workflow.ExecutionRepository, clk clock.Clock) error {
	stepClient := resty.New()
	if a.cfg.Auth.Enabled {
		stepClient.SetHeader(apiKeyHeader, a.cfg.Auth.APIKey)
	}

	a.dispatch = dispatcher.New(
		qmemory.NewQueue[workflow.Task](a.cfg.Workflow.QueueDepth),
		a.cfg.Workflow.Workers,
		a.logger.Named("dispatcher"),
	)
	engine, err := workflow.NewEngine(workflow.Config{StatusPath: "/api/workflow"}, workflow.Deps{
		Workflows:  memory.NewWorkflowStore(),
		Executions: executions,
		Queue:      a.dispatch,
		Invoker:    workflow.NewHTTPInvoker(stepClient, a.cfg.StepBaseURL(), a.cfg.Workflow.StepTimeout),
		IDs:        uuid.New("exec"),
		Clock:      clk,
		Emitter:    a.progressHub,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("workflow engine init failed: %w", err)
	}
	if err := engine.Seed(ctx); err != nil {
		return fmt.Errorf("seed workflows: %w", err)
	}
	a.engine = engine

	a.janitor = workflow.NewJanitor(a.cfg.Workflow.Retention, executions, clk, a.logger)
	return nil
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.dispatch.Run(ctx, a.engine)
	}()
	go a.janitor.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.dispatch.Stop()
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before shutdown deadline")
	}

	closeErr := a.Close(shutdownCtx)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases infrastructure and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	if a.engine != nil {
		a.engine.Shutdown()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.executions != nil {
		a.executions.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	// Sync fails on non-file stderr; nothing useful to do with the error.
	_ = a.logger.Sync()
}
