package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"climatecheck/internal/catalog"
	"climatecheck/internal/config"
	"climatecheck/internal/repository"
	"climatecheck/internal/services"
	"climatecheck/pkg/database"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// The ingester copies a station catalog snapshot into the station store so the
// server can run with CATALOG_SOURCE=database.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("catalog", cfg.Catalog.Path, "Station catalog snapshot (Feather or fixed-width)")
	format := flag.String("format", cfg.Catalog.Format, "Snapshot format: auto, feather or fixed-width")
	inventory := flag.String("inventory", cfg.Catalog.InventoryPath, "Optional GHCN-Daily inventory file for fixed-width catalogs")
	batchSize := flag.Int("batch-size", cfg.Import.BatchSize, "Number of stations to upsert per transaction")
	flag.Parse()

	parsedFormat, err := catalog.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("climatecheck-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting station catalog import", logging.Fields{
		"catalog":    *path,
		"format":     *format,
		"inventory":  *inventory,
		"batch_size": *batchSize,
		"driver":     cfg.Database.Driver,
	})

	metricsCollector := metrics.NewCollector("climatecheck_ingester", prometheus.NewRegistry())

	db, err := database.Open(cfg.Database.ToDatabaseConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	stationRepo := repository.NewStationRepository(db, logger, metricsCollector)
	importService := services.NewImportService(stationRepo, logger, metricsCollector)

	result, err := importService.ImportCatalog(ctx, catalog.Options{
		Path:          *path,
		Format:        parsedFormat,
		InventoryPath: *inventory,
	}, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Import failed", logging.Fields{
			"catalog": *path,
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("IMPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Stations in snapshot: %d\n", result.TotalStations)
	fmt.Printf("Stations imported:    %d\n", result.ImportedStations)
	fmt.Printf("Stations in store:    %d\n", result.StoredStations)
	fmt.Printf("Batches:              %d\n", result.Batches)
	fmt.Printf("Duration:             %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Stations/Second:      %.2f\n", float64(result.ImportedStations)/secs)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Import completed successfully", logging.Fields{
		"total_stations":    result.TotalStations,
		"imported_stations": result.ImportedStations,
		"stored_stations":   result.StoredStations,
		"batches":           result.Batches,
		"duration_seconds":  result.Duration.Seconds(),
	})
}
