package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"carecohort/internal/config"
	apierrors "carecohort/internal/errors"
	"carecohort/internal/infrastructure"
	customMiddleware "carecohort/internal/middleware"
	"carecohort/internal/services"
	"carecohort/internal/storage"
	handlers "carecohort/internal/transport/http"
	ws "carecohort/internal/websocket"
	"carecohort/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	Store         *storage.Store
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	ErrorHandler  *apierrors.ErrorHandler
	WebSocketHub  *ws.Hub
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Projects *services.ProjectService
	Analysis *services.AnalysisService
	Health   *services.HealthService
}

// NewApplication wires configuration, storage, services and the router. A
// nil cfg is loaded from the config file and environment.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return newApplication(cfg, logger)
}

func newApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths, err := config.ResolvePaths(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(
		infrastructure.OTelConfigFromTelemetry(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       businessMetrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices opens the store and builds the services on top of it
func (a *Application) initializeServices() error {
	store, err := storage.Open(storage.Options{
		Root:     a.Paths.StorageRoot,
		Compress: a.Config.Storage.CompressSnaps,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.Store = store

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	analysis := services.NewAnalysisService(store, a.Config.Analysis, a.Metrics, a.Logger)
	analysis.SetPublisher(hub)

	a.Services = &ServiceContainer{
		Projects: services.NewProjectService(store, a.Logger),
		Analysis: analysis,
		Health:   services.NewHealthService(contracts.Version, contracts.BuildTime, store, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))

	secure := customMiddleware.DefaultSecureHeaders()
	secure.DevMode = a.Config.Logging.Development
	r.Use(secure.Handler)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Round events; no timeout so connections stay open
	r.Get("/ws", ws.Handler(a.WebSocketHub, ws.HandlerConfig{
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
		AllowAllOrigins: a.Config.Logging.Development,
	}, a.Logger))

	a.setupAPIRoutes(r)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidator(a.Logger)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.Services.Health, a.Logger, a.ErrorHandler)
	projectHandler := handlers.NewProjectHandler(a.Services.Projects, validator, a.Logger, a.ErrorHandler)
	analysisHandler := handlers.NewAnalysisHandler(a.Services.Analysis, validator, a.Logger, a.ErrorHandler,
		handlers.AnalysisHandlerConfig{
			MaxUploadBytes:  a.Config.Server.MaxUploadBytes,
			WindowCapMonths: a.Config.Analysis.WindowCapMonths,
		})

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)
			r.Mount("/metrics", metricsHandler.Routes())
			r.Mount("/current", projectHandler.CurrentRoutes())
		})

		// Uploads and runs get the longer operation timeout
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))
			r.Use(customMiddleware.AuditLog(a.Logger))
			r.Use(apierrors.NewErrorMiddleware(a.Logger).Handler)

			r.Mount("/projects", projectHandler.Routes(analysisHandler.Routes()))
		})
	})
}

// getCORSConfig builds the CORS policy from the configured origins
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server in the background. A listen failure cancels
// ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.String("storage_root", a.Paths.StorageRoot))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	// hijacked WebSocket connections are not closed by Shutdown
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing storage", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck verifies the storage root and log directory are
// writable and the catalog answers.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Storage": a.Paths.StorageRoot,
		"Logs":    a.Paths.LogsDir,
	}
	for name, dir := range directories {
		f, err := os.CreateTemp(dir, ".write_test_*")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
			continue
		}
		f.Close()
		os.Remove(f.Name())
	}

	if status := a.Services.Health.ReadinessCheck(ctx); status.Status != "ready" {
		warnings = append(warnings, "storage not ready")
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
