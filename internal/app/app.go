package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"coefcalc/internal/config"
	apierrors "coefcalc/internal/errors"
	"coefcalc/internal/exporter"
	"coefcalc/internal/infrastructure"
	"coefcalc/internal/ingest"
	customMiddleware "coefcalc/internal/middleware"
	"coefcalc/internal/services"
	handlers "coefcalc/internal/transport/http"
	ws "coefcalc/internal/websocket"
)

// sessionSweepInterval is how often expired calculations are dropped
const sessionSweepInterval = time.Minute

// multipartOverhead is added to the upload body limit for form framing
const multipartOverhead = 1 << 20

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	ErrorHandler  *apierrors.ErrorHandler
	Services      *ServiceContainer

	validator *customMiddleware.ValidationMiddleware
	listener  net.Listener
	cancel    context.CancelFunc
	done      chan struct{}
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Guard       *ingest.Guard
	Calculation *services.CalculationService
	Sessions    *services.SessionStore
	Health      *services.HealthService
	WebSocket   *ws.Hub
	Workbook    *exporter.WorkbookWriter
	CSV         *exporter.CSVWriter
}

// NewApplication loads configuration, initializes the process logger and
// builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires an application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	paths := cfg.ResolvedPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.validator = app.uploadValidator()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics := a.OTelProviders.Metrics

	hub := ws.NewHub(a.Logger, ws.OptionsFromConfig(a.Config.WebSocket))

	guard := ingest.NewGuard(ingest.LimitsFromConfig(a.Config.Limits), nil, a.Logger).WithMetrics(metrics)

	calculation, err := services.NewCalculationService(guard, a.Config.Calculation, metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize calculation service: %w", err)
	}

	sessions := services.NewSessionStore(a.Config.Calculation, metrics, a.Logger)
	health := services.NewHealthService(config.AppVersion, a.Paths, hub, sessions, a.Logger)

	a.Services = &ServiceContainer{
		Guard:       guard,
		Calculation: calculation,
		Sessions:    sessions,
		Health:      health,
		WebSocket:   hub,
		Workbook:    exporter.NewWorkbookWriter(a.Paths, a.Logger),
		CSV:         exporter.NewCSVWriter(a.Paths, a.Logger),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Only middleware that leaves the ResponseWriter alone runs before the
	// WebSocket route
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := handlers.NewWebSocketHandler(a.Services.WebSocket, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger)
	r.Method(http.MethodGet, "/ws", wsHandler)

	r.Method(http.MethodGet, "/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → headers → CORS → rate limit
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(chimw.Compress(5, "application/json", "text/html", "text/csv"))

		calculations := a.calculationHandler()
		a.setupAPIRoutes(r, calculations)
		a.setupHTMLRoutes(r, calculations)
	})

	a.Router = r
}

func (a *Application) calculationHandler() *handlers.CalculationHandler {
	return handlers.NewCalculationHandler(handlers.CalculationHandlerConfig{
		Runner:       a.Services.Calculation,
		Store:        a.Services.Sessions,
		Publisher:    a.Services.WebSocket,
		Workbook:     a.Services.Workbook,
		CSV:          a.Services.CSV,
		Validator:    a.validator,
		ErrorHandler: a.ErrorHandler,
		MaxFileBytes: a.Config.Limits.MaxFileBytes,
		PreviewRows:  a.Config.Calculation.PreviewRows,
		Logger:       a.Logger,
	})
}

// uploadValidator bounds a whole upload request: every file of both
// families at the per-file limit plus form framing
func (a *Application) uploadValidator() *customMiddleware.ValidationMiddleware {
	limits := a.Config.Limits
	maxBody := 2*int64(limits.MaxFiles)*limits.MaxFileBytes + multipartOverhead
	return customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, maxBody)
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, calculations *handlers.CalculationHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout))

			health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
			r.Mount("/health", health.Routes())
			r.Get("/version", health.Version)
			r.Get("/stats", health.Stats)

			r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
		})

		// Uploads run the whole pipeline inside the request
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout))
			r.Use(a.validator.MaxBodySize)
			r.Mount("/calculations", calculations.Routes())
		})
	})
}

// setupHTMLRoutes configures the browser pages
func (a *Application) setupHTMLRoutes(r chi.Router, calculations *handlers.CalculationHandler) {
	pages := handlers.NewPageHandler(calculations,
		ingest.LimitsFromConfig(a.Config.Limits),
		string(a.Services.Calculation.Keyset()),
		a.Logger)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout))
		r.Use(a.validator.MaxBodySize)
		r.Mount("/", pages.Routes())
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: a.Router,
		// Uploads stream their body for as long as a calculation may run
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
		ReadTimeout:       a.Config.Server.OperationTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
		IdleTimeout:       a.Config.Server.IdleTimeout,
		MaxHeaderBytes:    a.Config.Server.MaxHeaderBytes,
	}
}

// Addr returns the address the server listens on once started
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listener and starts background services. Done is closed
// when the server stops serving.
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = ln

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	a.Services.WebSocket.Start()
	go a.Services.Sessions.Run(ctx, sessionSweepInterval)

	go func() {
		defer close(a.done)
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Addr()),
		slog.String("keyset", string(a.Services.Calculation.Keyset())),
		slog.Int("port", a.Config.Server.Port))
	return nil
}

// Done is closed once the server stops serving
func (a *Application) Done() <-chan struct{} {
	return a.done
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.Services.WebSocket.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete",
		slog.Int("sessions_dropped", a.Services.Sessions.Stats().Active))
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		a.Logger.Info("Received interrupt signal")
	case <-a.Done():
		a.Logger.Warn("Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck verifies the working directories are writable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	directories := map[string]string{
		"Data":    a.Paths.DataDir,
		"Reports": a.Paths.ReportsDir,
		"Logs":    a.Paths.LogsDir,
	}

	var warnings []string
	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
			continue
		}
		os.Remove(testFile)
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
