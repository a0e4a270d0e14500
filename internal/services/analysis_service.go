package services

import (
	"context"
	"errors"

	"climatecheck/internal/aggregation"
	"climatecheck/internal/models"
	"climatecheck/internal/noaa"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// StationLookup resolves catalog rows by id
type StationLookup interface {
	GetStation(id string) (models.StationRecord, error)
}

// SeriesSource fetches a station series and names where it came from
type SeriesSource interface {
	noaa.SeriesFetcher
	SeriesURL(stationID string) string
}

// Analysis is the outcome of one station analysis
type Analysis struct {
	Station    models.StationRecord `json:"station"`
	RawDataURL string               `json:"raw_data_url"`
	*aggregation.Result
}

// AnalysisService runs the fetch and aggregate pipeline for one station.
// Each call is independent; nothing is cached between calls.
type AnalysisService struct {
	stations StationLookup
	source   SeriesSource
	logger   *logging.ContextLogger
	metrics  *metrics.Collector
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(stations StationLookup, source SeriesSource, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalysisService {
	return &AnalysisService{
		stations: stations,
		source:   source,
		logger:   logger.WithFields(logging.Fields{"component": "analysis"}),
		metrics:  metricsCollector,
	}
}

// RawDataURL returns the link to the unprocessed station series
func (s *AnalysisService) RawDataURL(stationID string) string {
	return s.source.SeriesURL(stationID)
}

// Analyze fetches the station series and builds the heat-map grid and trend.
// Fetch failures are returned as they are; the caller decides whether to ask again.
func (s *AnalysisService) Analyze(ctx context.Context, stationID string) (*Analysis, error) {
	ctx = logging.WithStationID(ctx, stationID)

	station, err := s.stations.GetStation(stationID)
	if err != nil {
		s.metrics.RecordAnalysis("not_found", "")
		return nil, err
	}

	s.logger.Info(ctx, "[ANALYSIS_START] Running station analysis", logging.Fields{
		"station_name": station.Name,
	})

	series, err := s.source.FetchSeries(ctx, stationID)
	if err != nil {
		outcome := "unavailable"
		var noField *models.NoUsableFieldError
		if errors.As(err, &noField) {
			outcome = "no_usable_field"
		}
		s.metrics.RecordAnalysis(outcome, "")
		s.logger.Error(ctx, "[ANALYSIS_ERROR] Failed to fetch station series", logging.Fields{
			"outcome": outcome,
		}, err)
		return nil, err
	}

	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("aggregate"))
	result, err := aggregation.Aggregate(series)
	if err != nil {
		s.metrics.RecordAnalysis("failed", "")
		return nil, err
	}
	duration := timer.ObserveDuration()

	s.metrics.RecordAnalysis("complete", string(result.Field))

	s.logger.Info(ctx, "[ANALYSIS_COMPLETE] Station analysis completed", logging.Fields{
		"field":       string(result.Field),
		"readings":    result.Readings,
		"grid_years":  len(result.Grid.Years),
		"trend_years": len(result.Trend.Points),
		"duration_ms": duration.Milliseconds(),
	})

	return &Analysis{
		Station:    station,
		RawDataURL: s.source.SeriesURL(stationID),
		Result:     result,
	}, nil
}
