package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"climatecheck/internal/aggregation"
	"climatecheck/internal/dashboard"
	"climatecheck/internal/models"
	"climatecheck/internal/services"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

var testStations = []models.StationRecord{
	{ID: "USW00094728", Name: "NEW YORK CNTRL PK TWR", Latitude: 40.7789, Longitude: -73.9692, PeriodStart: 1869, PeriodEnd: 2024},
	{ID: "ACW00011604", Name: "ST JOHNS COOLIDGE FLD", Latitude: 17.1167, Longitude: -61.7833},
	{ID: "ASN00066062", Name: "SYDNEY (OBSERVATORY HILL)", Latitude: -33.8607, Longitude: 151.2050},
}

// fakeCatalog is a fixed station list
type fakeCatalog struct{}

func (fakeCatalog) GetAllStations() []models.StationRecord {
	return append([]models.StationRecord(nil), testStations...)
}

func (fakeCatalog) GetStation(id string) (models.StationRecord, error) {
	for _, s := range testStations {
		if s.ID == id {
			return s, nil
		}
	}
	return models.StationRecord{}, &models.NotFoundError{Resource: "station", ID: id}
}

func (fakeCatalog) StationsInBBox(bbox models.BBox) []models.StationRecord {
	var out []models.StationRecord
	for _, s := range testStations {
		if bbox.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}

// fakeAnalyzer returns a canned analysis or error
type fakeAnalyzer struct {
	err error
}

func tenths(v int) *int { return &v }

func (f fakeAnalyzer) Analyze(ctx context.Context, stationID string) (*services.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	station, err := fakeCatalog{}.GetStation(stationID)
	if err != nil {
		return nil, err
	}

	var obs []models.DailyObservation
	for year := 1978; year <= 1984; year++ {
		obs = append(obs, models.DailyObservation{
			Date: time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC),
			TAVG: tenths(100 + year - 1978),
		})
	}
	series, err := models.NewStationSeries(stationID, []models.Field{models.FieldTAVG}, obs)
	if err != nil {
		return nil, err
	}
	result, err := aggregation.Aggregate(series)
	if err != nil {
		return nil, err
	}
	return &services.Analysis{Station: station, RawDataURL: f.RawDataURL(stationID), Result: result}, nil
}

func (fakeAnalyzer) RawDataURL(stationID string) string {
	return "https://example.test/" + stationID + ".csv"
}

// fakeStore holds the persisted rows by id; err fails every call
type fakeStore struct {
	rows map[string]models.StoredStation
	err  error
}

func (f fakeStore) GetStation(ctx context.Context, stationID string) (*models.StoredStation, error) {
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[stationID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "station", ID: stationID}
	}
	return &row, nil
}

func (f fakeStore) HealthCheck(ctx context.Context) error { return f.err }

func newTestRouter(t *testing.T, analyzer Analyzer, store StationStore) (*mux.Router, *metrics.Collector) {
	t.Helper()

	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("handlers_test", prometheus.NewRegistry())

	renderer, err := dashboard.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	router := mux.NewRouter()
	router.Use(RequestLogging(logger))
	NewStationHandler(fakeCatalog{}, analyzer, store, logger, collector).RegisterRoutes(router)
	NewDashboardHandler(fakeCatalog{}, analyzer, renderer, logger, collector).RegisterRoutes(router)
	return router, collector
}

func serve(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListStations(t *testing.T) {
	router, _ := newTestRouter(t, fakeAnalyzer{}, nil)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantTotal int
		wantFirst string
		wantLen   int
	}{
		{"all", "/api/stations", http.StatusOK, 3, "USW00094728", 3},
		{"bbox", "/api/stations?bbox=-80,10,-60,45", http.StatusOK, 2, "USW00094728", 2},
		{"paged", "/api/stations?limit=2&page=2", http.StatusOK, 3, "ASN00066062", 1},
		{"past the end", "/api/stations?limit=2&page=5", http.StatusOK, 3, "", 0},
		{"bad bbox", "/api/stations?bbox=1,2", http.StatusBadRequest, 0, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var body struct {
				Data  []models.StationRecord `json:"data"`
				Total int                    `json:"total"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", body.Total, tt.wantTotal)
			}
			if len(body.Data) != tt.wantLen {
				t.Fatalf("len(data) = %d, want %d", len(body.Data), tt.wantLen)
			}
			if tt.wantLen > 0 && body.Data[0].ID != tt.wantFirst {
				t.Errorf("data[0].id = %v, want %v", body.Data[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestGetStation(t *testing.T) {
	router, _ := newTestRouter(t, fakeAnalyzer{}, nil)

	rec := serve(router, "/api/stations/USW00094728")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["name"] != "NEW YORK CNTRL PK TWR" {
		t.Errorf("name = %v", body["name"])
	}
	if body["raw_data_url"] != "https://example.test/USW00094728.csv" {
		t.Errorf("raw_data_url = %v", body["raw_data_url"])
	}

	rec = serve(router, "/api/stations/ZZZ00000000")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown station status = %d, want 404", rec.Code)
	}
}

func TestGetStation_ImportedAt(t *testing.T) {
	imported := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := fakeStore{rows: map[string]models.StoredStation{
		"USW00094728": {UpdatedAt: imported},
	}}

	tests := []struct {
		name  string
		store StationStore
		id    string
		want  string
	}{
		{"no store", nil, "USW00094728", ""},
		{"imported", store, "USW00094728", "2024-03-01T12:00:00Z"},
		{"not imported", store, "ACW00011604", ""},
		{"store down", fakeStore{err: errors.New("connection refused")}, "USW00094728", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, fakeAnalyzer{}, tt.store)

			rec := serve(router, "/api/stations/"+tt.id)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var body map[string]interface{}
			json.NewDecoder(rec.Body).Decode(&body)
			got, _ := body["imported_at"].(string)
			if got != tt.want {
				t.Errorf("imported_at = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAnalysis(t *testing.T) {
	router, _ := newTestRouter(t, fakeAnalyzer{}, nil)

	rec := serve(router, "/api/stations/USW00094728/analysis")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Station models.StationRecord          `json:"station"`
		Field   models.Field                  `json:"field"`
		Grid    aggregation.MonthlyGrid       `json:"monthly_grid"`
		Trend   aggregation.YearlyRollingMean `json:"rolling_yearly_mean"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Station.ID != "USW00094728" {
		t.Errorf("station.id = %v", body.Station.ID)
	}
	if body.Field != models.FieldTAVG {
		t.Errorf("field = %v, want TAVG", body.Field)
	}
	if len(body.Grid.Years) != 5 || body.Grid.Years[0] != 1980 {
		t.Errorf("grid years = %v, want 1980..1984", body.Grid.Years)
	}
	if len(body.Trend.Points) != 7 {
		t.Fatalf("trend points = %d, want 7", len(body.Trend.Points))
	}
	if body.Trend.Points[3].Rolling != nil || body.Trend.Points[4].Rolling == nil {
		t.Error("rolling mean should start at the fifth year")
	}
}

func TestGetAnalysis_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		errorType string
	}{
		{"not found", &models.NotFoundError{Resource: "station", ID: "X"}, http.StatusNotFound, "not_found"},
		{"unavailable", &models.DataUnavailableError{Source: "noaa", Reason: "unexpected status 500", Err: errors.New("500"), Transient: true}, http.StatusBadGateway, "data_unavailable"},
		{"no usable field", &models.NoUsableFieldError{StationID: "USW00094728"}, http.StatusUnprocessableEntity, "no_usable_field"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, collector := newTestRouter(t, fakeAnalyzer{err: tt.err}, nil)

			rec := serve(router, "/api/stations/USW00094728/analysis")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}

			var body ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantCode || body.Message != tt.err.Error() {
				t.Errorf("body = %+v", body)
			}

			got := testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues(tt.errorType, "/api/stations/{id}/analysis"))
			if got != 1 {
				t.Errorf("APIErrorsTotal{%s} = %v, want 1", tt.errorType, got)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		store    StationStore
		wantCode int
		want     string
	}{
		{"no store", nil, http.StatusOK, "healthy"},
		{"store ok", fakeStore{}, http.StatusOK, "healthy"},
		{"store down", fakeStore{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, fakeAnalyzer{}, tt.store)

			rec := serve(router, "/health")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}

			var body map[string]string
			json.NewDecoder(rec.Body).Decode(&body)
			if body["status"] != tt.want {
				t.Errorf("status = %v, want %v", body["status"], tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router, _ := newTestRouter(t, fakeAnalyzer{}, nil)

	rec := serve(router, "/health")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %v, want abc-123", got)
	}
}

func TestDashboard(t *testing.T) {
	tests := []struct {
		name     string
		analyzer Analyzer
		target   string
		wantCode int
		want     string
	}{
		{"idle", fakeAnalyzer{}, "/climatecheck/", http.StatusOK, "Select a point on the map to get started"},
		{"selected", fakeAnalyzer{}, "/climatecheck/?station=ACW00011604", http.StatusOK, "Run analysis for ST JOHNS COOLIDGE FLD"},
		{"complete", fakeAnalyzer{}, "/climatecheck/?station=USW00094728&run=1", http.StatusOK, "Monthly mean TAVG (°C) since 1980"},
		{
			"failed",
			fakeAnalyzer{err: &models.NoUsableFieldError{StationID: "USW00094728"}},
			"/climatecheck/?station=USW00094728&run=1",
			http.StatusUnprocessableEntity,
			"Analysis failed",
		},
		{"unknown station", fakeAnalyzer{}, "/climatecheck/?station=ZZZ00000000", http.StatusNotFound, "station not found"},
		{"bbox", fakeAnalyzer{}, "/climatecheck/?bbox=140,-40,155,-30", http.StatusOK, "ASN00066062"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, tt.analyzer, nil)

			rec := serve(router, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

type failingRenderer struct{}

func (failingRenderer) Render(page *dashboard.Page) ([]byte, error) {
	return nil, errors.New("template: dashboard.html: boom")
}

func TestDashboard_RenderFailure(t *testing.T) {
	logger := logging.NewStructuredLogger("handlers-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("handlers_test", prometheus.NewRegistry())

	router := mux.NewRouter()
	NewDashboardHandler(fakeCatalog{}, fakeAnalyzer{}, failingRenderer{}, logger, collector).RegisterRoutes(router)

	rec := serve(router, "/climatecheck/?station=USW00094728")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failed to render dashboard") {
		t.Errorf("body = %q, want the render error message", rec.Body.String())
	}
	if got := testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues("render_error", "/climatecheck/")); got != 1 {
		t.Errorf("APIErrorsTotal{render_error} = %v, want 1", got)
	}
}

func TestThin(t *testing.T) {
	stations := make([]models.StationRecord, 10)
	if got := thin(stations, 20); len(got) != 10 {
		t.Errorf("thin() kept %d, want 10", len(got))
	}
	if got := thin(stations, 3); len(got) > 3 || len(got) == 0 {
		t.Errorf("thin() kept %d, want 1..3", len(got))
	}
}

func TestOpenAPISpec(t *testing.T) {
	router, _ := newTestRouter(t, fakeAnalyzer{}, nil)

	rec := serve(router, "/api/docs/openapi.json")
	var spec map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&spec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	paths, _ := spec["paths"].(map[string]interface{})
	for _, p := range []string{"/api/stations", "/api/stations/{id}", "/api/stations/{id}/analysis", "/health"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("spec missing path %s", p)
		}
	}

	rec = serve(router, "/api/docs")
	if !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Error("docs page should load swagger-ui")
	}
}
