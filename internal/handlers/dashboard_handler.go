package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"climatecheck/internal/dashboard"
	"climatecheck/internal/models"
	"climatecheck/internal/services"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

// maxMapMarkers caps the markers drawn on the map; larger catalogs are thinned evenly
const maxMapMarkers = 5000

// PageRenderer turns a dashboard page into HTML
type PageRenderer interface {
	Render(page *dashboard.Page) ([]byte, error)
}

// DashboardHandler serves the server-rendered station picker
type DashboardHandler struct {
	catalog  Catalog
	analyzer Analyzer
	renderer PageRenderer
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	catalog Catalog,
	analyzer Analyzer,
	renderer PageRenderer,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		catalog:  catalog,
		analyzer: analyzer,
		renderer: renderer,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Dashboard handles GET /climatecheck/
//
// Query parameters drive the page state: station selects a station, run=1
// additionally runs the analysis, bbox restricts the map markers.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/climatecheck/"
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}()

	query := r.URL.Query()

	markers := h.catalog.GetAllStations()
	if raw := query.Get("bbox"); raw != "" {
		bbox, err := services.ParseBBox(raw)
		if err != nil {
			h.fail(w, r, endpoint, "validation_error", err.Error(), http.StatusBadRequest)
			return
		}
		markers = h.catalog.StationsInBBox(bbox)
	}

	page := dashboard.NewPage(thin(markers, maxMapMarkers))
	status := http.StatusOK

	if id := query.Get("station"); id != "" {
		station, err := h.catalog.GetStation(id)
		if err != nil {
			h.fail(w, r, endpoint, "not_found", err.Error(), http.StatusNotFound)
			return
		}
		if err := page.Select(station, h.analyzer.RawDataURL(id)); err != nil {
			h.fail(w, r, endpoint, "invalid_transition", err.Error(), http.StatusConflict)
			return
		}

		if query.Get("run") == "1" {
			if err := page.Start(); err != nil {
				h.fail(w, r, endpoint, "invalid_transition", err.Error(), http.StatusConflict)
				return
			}

			analysis, err := h.analyzer.Analyze(ctx, id)
			if err != nil {
				var errorType string
				status, errorType = statusFor(err)
				h.metrics.RecordAPIError(errorType, endpoint)
				err = page.Fail(err)
			} else {
				err = page.Complete(analysis.Result)
			}
			if err != nil {
				h.fail(w, r, endpoint, "invalid_transition", err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	body, err := h.renderer.Render(page)
	if err != nil {
		h.logger.Error(ctx, "[DASHBOARD_RENDER_ERROR] Failed to render dashboard", logging.Fields{
			"state": page.State.String(),
		}, err)
		h.fail(w, r, endpoint, "render_error", "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)

	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(status))
}

func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, endpoint, errorType, message string, code int) {
	h.metrics.RecordAPIError(errorType, endpoint)
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(code))
	http.Error(w, message, code)
}

// thin keeps at most n stations, taking every k-th one
func thin(stations []models.StationRecord, n int) []models.StationRecord {
	if len(stations) <= n {
		return stations
	}
	step := (len(stations) + n - 1) / n
	out := make([]models.StationRecord, 0, n)
	for i := 0; i < len(stations); i += step {
		out = append(out, stations[i])
	}
	return out
}

// RegisterRoutes registers the dashboard routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/climatecheck/", h.Dashboard).Methods("GET")
	router.Handle("/climatecheck", http.RedirectHandler("/climatecheck/", http.StatusMovedPermanently)).Methods("GET")
}
