package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnknownOlympus/patrol/internal/api"
	"github.com/UnknownOlympus/patrol/internal/cache"
	"github.com/UnknownOlympus/patrol/internal/calls"
	"github.com/UnknownOlympus/patrol/internal/config"
	"github.com/UnknownOlympus/patrol/internal/feed"
	"github.com/UnknownOlympus/patrol/internal/geocoding"
	"github.com/UnknownOlympus/patrol/internal/metrics"
	"github.com/UnknownOlympus/patrol/internal/repository"
	"github.com/UnknownOlympus/patrol/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// Cache backends.
const (
	backendFile     = "file"
	backendPostgres = "postgres"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	store, closeStore, err := newCacheStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize geocode cache store: %v", err)
	}
	defer closeStore()

	geoCache := cache.New(logger, store, appMetrics, cfg.Geocoder.RetryInterval)
	geoCache.Load(ctx)

	// Create geocoding provider using factory pattern based on configuration.
	providerConfig := geocoding.ProviderConfig{
		Type:        geocoding.ProviderType(cfg.Geocoder.ProviderType),
		APIKey:      cfg.Geocoder.APIKey,
		UserAgent:   cfg.Geocoder.UserAgent,
		MinInterval: cfg.Geocoder.QueryDelay,
		Logger:      logger,
	}

	geoProvider, err := geocoding.NewProvider(providerConfig)
	if err != nil {
		log.Fatalf("Failed to create geocoding provider: %v", err)
	}

	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder.ProviderType)

	cascade := geocoding.NewCascade(logger, geoProvider, cfg.Geocoder.ProviderType, cfg.Geocoder.QueryDelay, appMetrics)
	board := calls.NewBoard()

	refresher := service.NewRefresher(
		logger,
		feed.NewClient(cfg.Feed.URL, cfg.Geocoder.UserAgent, logger),
		geoCache,
		board,
		appMetrics,
		cfg.Feed.RefreshInterval,
	)

	enricher := service.NewEnricher(
		logger,
		geoCache,
		board,
		cascade,
		cfg.Geocoder.ProviderType, // Provider name recorded in cache entries
		appMetrics,
		service.EnricherConfig{
			WorkerDelay: cfg.Geocoder.WorkerDelay,
			IdleDelay:   cfg.Geocoder.IdleDelay,
			MaxPerCycle: cfg.Geocoder.MaxPerCycle,
		},
	)

	readTimeout := 5
	writeTimeout := 35
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
		Handler:      api.NewServer(logger, board, refresher, reg),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.", "addr", server.Addr)

	go refresher.Run(ctx)
	go enricher.Run(ctx)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "HTTP server failed", "error", err)
			stop()
		}
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "HTTP server shutdown failed", "error", err)
	}
	geoCache.Persist(shutdownCtx)

	// Log graceful shutdown completion.
	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
}

// newCacheStore builds the durable backend of the geocode cache selected by the configuration.
// The returned function releases any resources held by the store.
func newCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, func(), error) {
	switch cfg.Cache.Backend {
	case backendFile:
		logger.InfoContext(ctx, "Using file geocode cache", "path", cfg.Cache.File)
		return cache.NewFileStore(cfg.Cache.File), func() {}, nil
	case backendPostgres:
		dtb, err := repository.NewDatabase(
			ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
		}

		repo := repository.NewRepository(dtb, logger)
		if err = repo.EnsureSchema(ctx); err != nil {
			dtb.Close()
			return nil, nil, err
		}

		logger.InfoContext(ctx, "Using postgres geocode cache", "host", cfg.Database.Host)
		return repo, dtb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified	 or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
