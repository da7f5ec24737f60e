package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/config"
	"github.com/hiroki-koketsu/taskboard/internal/handler"
	"github.com/hiroki-koketsu/taskboard/internal/repository"
	"github.com/hiroki-koketsu/taskboard/internal/storage"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

func main() {
	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		startupLogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageBackend),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	ctx := context.Background()

	logger := telemetry.NewConsoleLogger(os.Stdout, cfg.ServiceName, cfg.LogLevel)
	if cfg.OTelEnabled {
		shutdown, otelLogger, err := initTelemetry(ctx, cfg, startupLogger)
		if err != nil {
			startupLogger.Error("failed to initialize telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer shutdown()
		logger = otelLogger
	}

	gateway, closeGateway, err := openGateway(cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeGateway()

	// Initialize repositories; users first so task assignments can be checked
	userRepo := repository.NewUserRepository(gateway, logger)
	if err := userRepo.Load(ctx); err != nil {
		logger.Error("failed to load users", slog.Any("error", err))
		os.Exit(1)
	}
	taskRepo := repository.NewTaskRepository(gateway, userRepo, logger)
	if err := taskRepo.Load(ctx); err != nil {
		logger.Error("failed to load tasks", slog.Any("error", err))
		os.Exit(1)
	}

	// Create metrics instruments. Without OTel the global provider is a no-op.
	meter := otel.Meter(cfg.ServiceName)
	metrics, err := telemetry.NewMetrics(meter, taskRepo.Count, userRepo.Count)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	router := handler.NewRouter(
		handler.NewTaskHandler(taskRepo, logger, metrics, cfg.DefaultPageSize),
		handler.NewUserHandler(userRepo, logger, metrics, cfg.DefaultPageSize),
	)

	// Wrap router with OpenTelemetry HTTP instrumentation
	otelHandler := otelhttp.NewHandler(router, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// Skip tracing for health checks
			return r.URL.Path != "/health"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("server stopped")
}

// initTelemetry starts the tracer, meter and logger providers. The returned
// function flushes and stops them in reverse order.
func initTelemetry(ctx context.Context, cfg *config.Config, startupLogger *slog.Logger) (func(), *slog.Logger, error) {
	tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}

	mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}

	// Logger provider last so log records can be correlated with traces
	lp, logger, err := telemetry.InitLoggerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func() {
		if err := lp.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown logger provider", slog.Any("error", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown meter provider", slog.Any("error", err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			startupLogger.Error("failed to shutdown tracer provider", slog.Any("error", err))
		}
	}
	return shutdown, logger, nil
}

// openGateway returns the configured persistence backend and its closer.
func openGateway(cfg *config.Config, logger *slog.Logger) (storage.Gateway, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		gw, err := storage.NewSQLiteGateway(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return gw, closer(gw, logger), nil
	default:
		gw, err := storage.NewFileGateway(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() {}, nil
	}
}

func closer(c io.Closer, logger *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}
}
