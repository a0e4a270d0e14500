package services

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"climatecheck/internal/catalog"
	"climatecheck/internal/models"
	"climatecheck/internal/repository"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// CatalogService is the in-memory station index behind the map.
// The index is replaced wholesale on load and read concurrently by handlers.
type CatalogService struct {
	logger  *logging.ContextLogger
	metrics *metrics.Collector

	mu       sync.RWMutex
	stations []models.StationRecord
	byID     map[string]int
}

// NewCatalogService creates an empty catalog index
func NewCatalogService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CatalogService {
	return &CatalogService{
		logger:  logger.WithFields(logging.Fields{"component": "catalog"}),
		metrics: metricsCollector,
		byID:    make(map[string]int),
	}
}

// LoadFromFile reads the catalog snapshot and publishes it
func (s *CatalogService) LoadFromFile(ctx context.Context, opts catalog.Options) error {
	timer := s.metrics.NewTimer(s.metrics.CatalogLoadDuration)

	s.logger.Info(ctx, "[CATALOG_LOAD_START] Loading station catalog", logging.Fields{
		"source":         "file",
		"path":           opts.Path,
		"format":         string(opts.Format),
		"inventory_path": opts.InventoryPath,
	})

	stations, err := catalog.Load(ctx, opts)
	if err != nil {
		s.logger.Error(ctx, "[CATALOG_LOAD_ERROR] Failed to load station catalog", logging.Fields{
			"path": opts.Path,
		}, err)
		return err
	}

	s.publish(ctx, stations)
	s.logLoaded(ctx, "file", timer.ObserveDuration().Milliseconds())
	return nil
}

// LoadFromRepository publishes the stations persisted by the ingester
func (s *CatalogService) LoadFromRepository(ctx context.Context, repo repository.StationRepository) error {
	timer := s.metrics.NewTimer(s.metrics.CatalogLoadDuration)

	stations, err := repo.ListStations(ctx)
	if err != nil {
		s.logger.Error(ctx, "[CATALOG_LOAD_ERROR] Failed to load station catalog", logging.Fields{
			"source": "database",
		}, err)
		return &models.DataUnavailableError{Source: "station store", Reason: "failed to list stations", Err: err}
	}
	if len(stations) == 0 {
		return &models.DataUnavailableError{Source: "station store", Reason: "no stations imported"}
	}

	s.publish(ctx, stations)
	s.logLoaded(ctx, "database", timer.ObserveDuration().Milliseconds())
	return nil
}

func (s *CatalogService) logLoaded(ctx context.Context, source string, durationMs int64) {
	s.logger.Info(ctx, "[CATALOG_LOAD_COMPLETE] Station catalog loaded", logging.Fields{
		"source":      source,
		"stations":    s.Count(),
		"duration_ms": durationMs,
	})
}

// publish swaps in a new index. The first row wins when an id repeats.
func (s *CatalogService) publish(ctx context.Context, stations []models.StationRecord) {
	byID := make(map[string]int, len(stations))
	duplicates := 0
	for i, st := range stations {
		if _, ok := byID[st.ID]; ok {
			duplicates++
			continue
		}
		byID[st.ID] = i
	}

	if duplicates > 0 {
		s.logger.Warn(ctx, "[CATALOG_DUPLICATES] Duplicate station ids in catalog", logging.Fields{
			"duplicates": duplicates,
		})
	}

	s.mu.Lock()
	s.stations = stations
	s.byID = byID
	s.mu.Unlock()

	s.metrics.CatalogStations.Set(float64(len(stations)))
}

// Count returns the number of catalog rows
func (s *CatalogService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations)
}

// GetAllStations returns every station in catalog order
func (s *CatalogService) GetAllStations() []models.StationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StationRecord, len(s.stations))
	copy(out, s.stations)
	return out
}

// GetStation looks up a station by id
func (s *CatalogService) GetStation(id string) (models.StationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return models.StationRecord{}, &models.NotFoundError{Resource: "station", ID: id}
	}
	return s.stations[i], nil
}

// StationsInBBox returns the stations inside the viewport, in catalog order
func (s *CatalogService) StationsInBBox(bbox models.BBox) []models.StationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StationRecord
	for _, st := range s.stations {
		if bbox.Contains(st) {
			out = append(out, st)
		}
	}
	return out
}

// ParseBBox parses minLon,minLat,maxLon,maxLat. Each part must be a finite
// number with nothing else around it.
func ParseBBox(raw string) (models.BBox, error) {
	invalid := &models.ValidationError{
		Field:   "bbox",
		Value:   raw,
		Message: "invalid bbox, expected minLon,minLat,maxLon,maxLat",
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return models.BBox{}, invalid
	}

	var values [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.BBox{}, invalid
		}
		values[i] = v
	}

	b := models.BBox{MinLon: values[0], MinLat: values[1], MaxLon: values[2], MaxLat: values[3]}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return b, &models.ValidationError{
			Field:   "bbox",
			Value:   raw,
			Message: "invalid bbox, minimum exceeds maximum",
		}
	}

	return b, nil
}
