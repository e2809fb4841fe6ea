package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/upahead/internal/app"
	"github.com/hiroki-koketsu/upahead/internal/config"
	"github.com/hiroki-koketsu/upahead/internal/handler"
	"github.com/hiroki-koketsu/upahead/internal/scheduler"
	"github.com/hiroki-koketsu/upahead/internal/telemetry"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	startupLogger.Info("starting gateway",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("demo_mode", cfg.DemoMode()),
	)

	ctx := context.Background()
	logger := startupLogger

	if cfg.OTelEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize tracer provider", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown tracer provider", slog.Any("error", err))
			}
		}()

		mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize meter provider", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := mp.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown meter provider", slog.Any("error", err))
			}
		}()

		// Logger provider last, for log-trace correlation
		lp, otelLogger, err := telemetry.InitLoggerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize logger provider", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := lp.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown logger provider", slog.Any("error", err))
			}
		}()
		logger = otelLogger
	}

	prom := handler.NewPrometheus()
	var metrics *telemetry.Metrics

	// Wire session, stores and services
	a, err := app.New(ctx, cfg, logger, app.Hooks{
		AIOutcome: func(ctx context.Context, outcome string) {
			metrics.RecordAIAttempt(ctx, outcome)
			prom.ObserveAIOutcome(ctx, outcome)
		},
		ImportResult: prom.ObserveImport,
	})
	if err != nil {
		logger.Error("failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	// Create metrics instruments
	meter := otel.Meter(cfg.ServiceName)
	metrics, err = telemetry.NewMetrics(meter, a.Store.Len)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	hub := handler.NewHub(logger, cfg.AllowedOrigins)
	defer hub.Close()

	h := handler.New(handler.Deps{
		Session:     a.Session,
		Store:       a.Store,
		AI:          a.AI,
		Booster:     a.Booster,
		Importer:    a.Importer,
		Hub:         hub,
		TokenSecret: cfg.DemoSecret,
	}, logger, metrics, prom)
	stopWatch := h.Watch()
	defer stopWatch()

	// Periodic refresh of the first page
	if cfg.RefreshInterval > 0 {
		sched := scheduler.New(time.Local)
		_, err := sched.Every(cfg.RefreshInterval, func() {
			if a.Session.UserID() == "" {
				return
			}
			err := a.Store.RefreshTasks(ctx)
			prom.ObserveRefresh(handler.TriggerScheduled, err)
			if err != nil {
				logger.Warn("scheduled refresh failed", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("failed to schedule refresh", slog.Any("error", err))
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Create router
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	// Health check and scrape endpoints (excluded from tracing)
	r.Get("/health", h.Health)
	r.Handle("/metrics", prom.Handler())

	// Push channel, not subject to the request timeout
	r.Get("/ws", h.ServeWS)

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Mount("/api/v1", h.Routes())
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Wrap router with OpenTelemetry HTTP instrumentation
	otelHandler := otelhttp.NewHandler(c.Handler(r), "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           otelHandler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	if u := a.Session.User(); u != nil {
		logger.Info("session restored", slog.String("user", u.ID), slog.Int64("tasks", a.Store.Len()))
	} else {
		logger.Info("no active session", slog.String("hint", "POST /api/v1/session to sign in"))
	}

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Gracefully shutdown the server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
}
