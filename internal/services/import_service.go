package services

import (
	"context"
	"fmt"
	"time"

	"climatecheck/internal/catalog"
	"climatecheck/internal/models"
	"climatecheck/internal/repository"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// ImportService copies the catalog snapshot into the station store
type ImportService struct {
	repo    repository.StationRepository
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// ImportResult contains import statistics
type ImportResult struct {
	TotalStations    int
	ImportedStations int
	StoredStations   int
	Batches          int
	Duration         time.Duration
}

// NewImportService creates a new import service
func NewImportService(repo repository.StationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ImportService {
	return &ImportService{
		repo:    repo,
		logger:  logger.WithFields(logging.Fields{"component": "import"}),
		metrics: metricsCollector,
	}
}

// ImportCatalog loads the snapshot named by opts and upserts it in batches.
// A malformed snapshot imports nothing.
func (s *ImportService) ImportCatalog(ctx context.Context, opts catalog.Options, batchSize int) (*ImportResult, error) {
	startTime := time.Now()

	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	s.logger.Info(ctx, "[IMPORT_START] Starting catalog import", logging.Fields{
		"path":           opts.Path,
		"inventory_path": opts.InventoryPath,
		"batch_size":     batchSize,
		"stage":          "INITIALIZATION",
	})

	stations, err := catalog.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	s.logger.Info(ctx, "[IMPORT_LOADED] Catalog snapshot read", logging.Fields{
		"stations": len(stations),
		"stage":    "SNAPSHOT_READ",
	})

	result, err := s.ImportStations(ctx, stations, batchSize)
	if err != nil {
		return nil, err
	}

	// Earlier imports may hold stations this snapshot no longer lists.
	stored, err := s.repo.CountStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored stations: %w", err)
	}
	result.StoredStations = stored
	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[IMPORT_COMPLETE] Catalog import completed", logging.Fields{
		"total_stations":      result.TotalStations,
		"imported_stations":   result.ImportedStations,
		"stored_stations":     result.StoredStations,
		"batches":             result.Batches,
		"duration_seconds":    result.Duration.Seconds(),
		"stations_per_second": float64(result.ImportedStations) / result.Duration.Seconds(),
		"stage":               "COMPLETE",
	})

	return result, nil
}

// ImportStations upserts stations batchSize rows at a time
func (s *ImportService) ImportStations(ctx context.Context, stations []models.StationRecord, batchSize int) (*ImportResult, error) {
	result := &ImportResult{TotalStations: len(stations)}

	for start := 0; start < len(stations); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + batchSize
		if end > len(stations) {
			end = len(stations)
		}

		n, err := s.repo.UpsertStationsBatch(ctx, start, stations[start:end])
		if err != nil {
			s.logger.Error(ctx, "[IMPORT_BATCH_ERROR] Batch upsert failed", logging.Fields{
				"batch_start": start,
				"batch_end":   end,
				"stage":       "BATCH_WRITE",
			}, err)
			return nil, fmt.Errorf("failed to import stations %d-%d: %w", start, end-1, err)
		}

		result.ImportedStations += n
		result.Batches++
	}

	return result, nil
}
