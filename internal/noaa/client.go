// Package noaa fetches the daily record of a single station from the
// NCEI GHCN-Daily access service.
package noaa

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"climatecheck/internal/models"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// DefaultBaseURL serves one CSV per station at {base}/{id}.csv
const DefaultBaseURL = "https://www.ncei.noaa.gov/data/global-historical-climatology-network-daily/access"

// SeriesFetcher returns the raw daily series of a station
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, stationID string) (*models.StationSeries, error)
}

// Config holds client settings
type Config struct {
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond may be fractional; Burst is the largest request burst allowed
	RequestsPerSecond float64
	Burst             int
}

// Client is a rate limited SeriesFetcher. Failed fetches are reported, never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewClient creates a new NOAA client
func NewClient(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SeriesURL returns the CSV location for a station
func (c *Client) SeriesURL(stationID string) string {
	return fmt.Sprintf("%s/%s.csv", c.baseURL, url.PathEscape(stationID))
}

// FetchSeries downloads and parses the station CSV
func (c *Client) FetchSeries(ctx context.Context, stationID string) (*models.StationSeries, error) {
	timer := c.metrics.NewTimer(c.metrics.FetchDuration)
	endpoint := c.SeriesURL(stationID)

	// Wait for rate limiter permission or context cancellation
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordFetchError("rate_limit")
		return nil, &models.DataUnavailableError{Source: endpoint, Reason: "rate limit wait canceled", Err: err, Transient: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.metrics.RecordFetchError("request")
		return nil, &models.DataUnavailableError{Source: endpoint, Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordFetchError("network")
		c.logger.Warn(ctx, "[NOAA_FETCH_ERROR] Request failed", logging.Fields{
			"station_id": stationID,
			"url":        endpoint,
			"error":      err.Error(),
		})
		return nil, &models.DataUnavailableError{Source: endpoint, Reason: "failed to execute request", Err: err, Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordFetchError("status")
		c.logger.Warn(ctx, "[NOAA_FETCH_ERROR] Unexpected status", logging.Fields{
			"station_id": stationID,
			"url":        endpoint,
			"status":     resp.StatusCode,
		})

		// Server side failures may clear up; a missing station will not.
		return nil, &models.DataUnavailableError{
			Source:    endpoint,
			Reason:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Transient: resp.StatusCode >= http.StatusInternalServerError,
		}
	}

	series, err := ParseSeriesCSV(stationID, resp.Body)
	if err != nil {
		var noField *models.NoUsableFieldError
		if errors.As(err, &noField) {
			c.metrics.RecordFetchError("no_usable_field")
			return nil, err
		}

		c.metrics.RecordFetchError("parse")
		return nil, &models.DataUnavailableError{Source: endpoint, Reason: "malformed station series", Err: err}
	}

	duration := timer.ObserveDuration()
	c.metrics.FetchRows.Observe(float64(series.Len()))

	c.logger.Info(ctx, "[NOAA_FETCH] Station series fetched", logging.Fields{
		"station_id":  stationID,
		"rows":        series.Len(),
		"has_tmax":    series.HasField(models.FieldTMAX),
		"has_tavg":    series.HasField(models.FieldTAVG),
		"duration_ms": duration.Milliseconds(),
	})

	return series, nil
}

// ParseSeriesCSV reads a GHCN-Daily access CSV. The header must name a DATE
// column; TMAX and TAVG columns are optional and every other column is ignored.
func ParseSeriesCSV(stationID string, r io.Reader) (*models.StationSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty response")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	dateCol, tmaxCol, tavgCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "DATE":
			dateCol = i
		case string(models.FieldTMAX):
			tmaxCol = i
		case string(models.FieldTAVG):
			tavgCol = i
		}
	}
	if dateCol < 0 {
		return nil, errors.New("missing DATE column")
	}

	var fields []models.Field
	if tmaxCol >= 0 {
		fields = append(fields, models.FieldTMAX)
	}
	if tavgCol >= 0 {
		fields = append(fields, models.FieldTAVG)
	}

	var observations []models.DailyObservation
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		raw := models.RawDailyRecord{Date: record[dateCol]}
		if tmaxCol >= 0 {
			raw.TMAX = record[tmaxCol]
		}
		if tavgCol >= 0 {
			raw.TAVG = record[tavgCol]
		}

		obs, err := raw.ToObservation()
		if err != nil {
			line, _ := reader.FieldPos(dateCol)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		observations = append(observations, obs)
	}

	return models.NewStationSeries(stationID, fields, observations)
}
