package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"climatecheck/internal/models"
	"climatecheck/internal/services"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// Catalog is the station index the handlers read from
type Catalog interface {
	GetAllStations() []models.StationRecord
	GetStation(id string) (models.StationRecord, error)
	StationsInBBox(bbox models.BBox) []models.StationRecord
}

// Analyzer runs a station analysis
type Analyzer interface {
	Analyze(ctx context.Context, stationID string) (*services.Analysis, error)
	RawDataURL(stationID string) string
}

// StationStore is the optional persisted catalog. It backs /health and the
// import timestamp on station lookups.
type StationStore interface {
	GetStation(ctx context.Context, stationID string) (*models.StoredStation, error)
	HealthCheck(ctx context.Context) error
}

// StationHandler handles the station and analysis API endpoints
type StationHandler struct {
	catalog  Catalog
	analyzer Analyzer
	store    StationStore
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewStationHandler creates a new station handler. store may be nil when the
// catalog is served from a snapshot file only.
func NewStationHandler(
	catalog Catalog,
	analyzer Analyzer,
	store StationStore,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *StationHandler {
	return &StationHandler{
		catalog:  catalog,
		analyzer: analyzer,
		store:    store,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ListStations handles GET /api/stations
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations"
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}()

	// Default pagination
	page := 1
	limit := 1000

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 10000 {
		limit = l
	}

	var stations []models.StationRecord
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		bbox, err := services.ParseBBox(raw)
		if err != nil {
			h.metrics.RecordAPIError("validation_error", endpoint)
			h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
			return
		}
		stations = h.catalog.StationsInBBox(bbox)
	} else {
		stations = h.catalog.GetAllStations()
	}

	if stations == nil {
		stations = []models.StationRecord{}
	}

	total := len(stations)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	response := PaginatedResponse{
		Data:       stations[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetStation handles GET /api/stations/{id}
func (h *StationHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{id}"
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}()

	id := mux.Vars(r)["id"]
	station, err := h.catalog.GetStation(id)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	response := struct {
		models.StationRecord
		RawDataURL string     `json:"raw_data_url"`
		ImportedAt *time.Time `json:"imported_at,omitempty"`
	}{StationRecord: station, RawDataURL: h.analyzer.RawDataURL(id)}

	if h.store != nil {
		stored, err := h.store.GetStation(r.Context(), id)
		var notFound *models.NotFoundError
		switch {
		case err == nil:
			response.ImportedAt = &stored.UpdatedAt
		case !errors.As(err, &notFound):
			h.logger.Warn(r.Context(), "[STORE_LOOKUP_FAILED] Station store lookup failed", logging.Fields{
				"station_id": id,
				"error":      err.Error(),
			})
		}
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetAnalysis handles GET /api/stations/{id}/analysis
func (h *StationHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{id}/analysis"
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}()

	analysis, err := h.analyzer.Analyze(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, analysis, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *StationHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Station store unhealthy", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) (int, string) {
	var (
		notFound    *models.NotFoundError
		validation  *models.ValidationError
		unavailable *models.DataUnavailableError
		noField     *models.NoUsableFieldError
	)

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &noField):
		return http.StatusUnprocessableEntity, "no_usable_field"
	case errors.As(err, &unavailable):
		return http.StatusBadGateway, "data_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *StationHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	code, errorType := statusFor(err)
	h.metrics.RecordAPIError(errorType, endpoint)

	if code >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint":   endpoint,
			"error_type": errorType,
		}, err)
	}

	h.sendError(w, r, endpoint, err.Error(), code)
}

// sendJSON sends a JSON response
func (h *StationHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *StationHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all station API routes
func (h *StationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stations", h.ListStations).Methods("GET")
	router.HandleFunc("/api/stations/{id}", h.GetStation).Methods("GET")
	router.HandleFunc("/api/stations/{id}/analysis", h.GetAnalysis).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
