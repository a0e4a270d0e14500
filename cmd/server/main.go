package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"climatecheck/internal/config"
	"climatecheck/internal/dashboard"
	"climatecheck/internal/handlers"
	"climatecheck/internal/noaa"
	"climatecheck/internal/repository"
	"climatecheck/internal/services"
	"climatecheck/pkg/database"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("climatecheck", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting climatecheck server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"catalog_source": cfg.Catalog.Source,
		"db_enabled":     cfg.Database.Enabled,
	})

	metricsCollector := metrics.NewCollector("climatecheck", prometheus.DefaultRegisterer)

	// The station store is optional; without it the catalog comes from the snapshot file
	var stationRepo repository.StationRepository
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database.ToDatabaseConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
				"driver": cfg.Database.Driver,
			}, err)
		}
		defer db.Close()

		stationRepo = repository.NewStationRepository(db, logger, metricsCollector)
	}

	catalogService := services.NewCatalogService(logger, metricsCollector)
	switch cfg.Catalog.Source {
	case config.CatalogSourceDatabase:
		err = catalogService.LoadFromRepository(ctx, stationRepo)
	default:
		err = catalogService.LoadFromFile(ctx, cfg.Catalog.Options())
	}
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load station catalog", logging.Fields{
			"catalog_source": cfg.Catalog.Source,
			"catalog_path":   cfg.Catalog.Path,
		}, err)
	}

	noaaClient := noaa.NewClient(noaa.Config{
		BaseURL:           cfg.NOAA.BaseURL,
		Timeout:           cfg.NOAA.Timeout,
		RequestsPerSecond: cfg.NOAA.RequestsPerSecond,
		Burst:             cfg.NOAA.Burst,
	}, logger, metricsCollector)

	analysisService := services.NewAnalysisService(catalogService, noaaClient, logger, metricsCollector)

	renderer, err := dashboard.NewRenderer()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to parse dashboard templates", logging.Fields{}, err)
	}

	var store handlers.StationStore
	if stationRepo != nil {
		store = stationRepo
	}
	stationHandler := handlers.NewStationHandler(catalogService, analysisService, store, logger, metricsCollector)
	dashboardHandler := handlers.NewDashboardHandler(catalogService, analysisService, renderer, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestLogging(logger))

	stationHandler.RegisterRoutes(router)
	dashboardHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address":  server.Addr,
			"stations": catalogService.Count(),
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
