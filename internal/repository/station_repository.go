package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"climatecheck/internal/models"
	"climatecheck/pkg/database"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// StationRepository provides data access for the persisted station catalog
type StationRepository interface {
	// Write operations
	UpsertStationsBatch(ctx context.Context, firstPosition int, stations []models.StationRecord) (int, error)

	// Read operations
	GetStation(ctx context.Context, stationID string) (*models.StoredStation, error)
	ListStations(ctx context.Context) ([]models.StationRecord, error)
	CountStations(ctx context.Context) (int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

const stationColumns = `station_id, name, latitude, longitude, elevation, period_start, period_end`

// stationRepository implements StationRepository
type stationRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) StationRepository {
	return &stationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UpsertStationsBatch writes stations in a single transaction. stations[i] is
// stored at catalog position firstPosition+i so reads return snapshot order.
// Existing rows keep their created_at and get every other column replaced.
func (r *stationRepository) UpsertStationsBatch(ctx context.Context, firstPosition int, stations []models.StationRecord) (int, error) {
	if len(stations) == 0 {
		return 0, nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.CatalogImportBatch.Observe(float64(len(stations)))
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Batch upsert completed", logging.Fields{
			"count":       len(stations),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, tx.Rebind(`
		INSERT INTO stations (`+stationColumns+`, catalog_position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (station_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			catalog_position = excluded.catalog_position,
			updated_at = excluded.updated_at
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	for i, s := range stations {
		if err := s.Validate(); err != nil {
			return 0, err
		}

		_, err := stmt.ExecContext(ctx,
			s.ID,
			s.Name,
			s.Latitude,
			s.Longitude,
			s.Elevation,
			s.PeriodStart,
			s.PeriodEnd,
			firstPosition+i,
			now,
			now,
		)
		if err != nil {
			r.metrics.RecordDBError("upsert_error")
			return 0, fmt.Errorf("failed to upsert station %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.CatalogImportTotal.Add(float64(len(stations)))

	return len(stations), nil
}

// GetStation retrieves a persisted station by ID
func (r *stationRepository) GetStation(ctx context.Context, stationID string) (*models.StoredStation, error) {
	query := `
		SELECT ` + stationColumns + `, created_at, updated_at
		FROM stations
		WHERE station_id = ?
	`

	var station models.StoredStation
	err := r.db.GetContext(ctx, "get_station", &station, query, stationID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{
			Resource: "station",
			ID:       stationID,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}

	return &station, nil
}

// ListStations returns every persisted station in snapshot order
func (r *stationRepository) ListStations(ctx context.Context) ([]models.StationRecord, error) {
	query := `
		SELECT ` + stationColumns + `
		FROM stations
		ORDER BY catalog_position, station_id
	`

	var stations []models.StationRecord
	if err := r.db.SelectContext(ctx, "list_stations", &stations, query); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}

	return stations, nil
}

// CountStations returns the number of persisted stations
func (r *stationRepository) CountStations(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, "count_stations", &count, `SELECT COUNT(*) FROM stations`); err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}
	return count, nil
}

// HealthCheck performs a repository health check
func (r *stationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
