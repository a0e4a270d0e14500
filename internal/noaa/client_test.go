package noaa

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"climatecheck/internal/models"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

const sampleCSV = `"STATION","DATE","LATITUDE","LONGITUDE","ELEVATION","NAME","PRCP","PRCP_ATTRIBUTES","TMAX","TMAX_ATTRIBUTES","TAVG","TAVG_ATTRIBUTES"
"USW00094728","1980-01-02","40.77898","-73.96925","42.7","NY CITY CENTRAL PARK, NY US","    0",",,X,2400","   50",",,X","     ",""
"USW00094728","1980-01-01","40.77898","-73.96925","42.7","NY CITY CENTRAL PARK, NY US","    3",",,X,2400","   39",",,X","     ",""
"USW00094728","1980-01-03","40.77898","-73.96925","42.7","NY CITY CENTRAL PARK, NY US","    0",",,X,2400","     ","","   12",",,W"
`

func newTestClient(t *testing.T, baseURL string) (*Client, *metrics.Collector) {
	t.Helper()

	logger := logging.NewStructuredLogger("noaa-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("noaa_test", prometheus.NewRegistry())

	return NewClient(Config{BaseURL: baseURL, Timeout: 5 * time.Second}, logger, collector), collector
}

func TestFetchSeries(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, sampleCSV)
	}))
	defer server.Close()

	client, collector := newTestClient(t, server.URL+"/access/")

	series, err := client.FetchSeries(context.Background(), "USW00094728")
	if err != nil {
		t.Fatalf("FetchSeries() error = %v", err)
	}

	if gotPath != "/access/USW00094728.csv" {
		t.Errorf("request path = %v, want %v", gotPath, "/access/USW00094728.csv")
	}

	if series.StationID() != "USW00094728" {
		t.Errorf("StationID() = %v, want %v", series.StationID(), "USW00094728")
	}
	if series.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", series.Len())
	}
	if !series.HasField(models.FieldTMAX) || !series.HasField(models.FieldTAVG) {
		t.Error("series should carry both TMAX and TAVG columns")
	}
	if got := series.Count(models.FieldTMAX); got != 2 {
		t.Errorf("Count(TMAX) = %d, want 2", got)
	}
	if got := series.Count(models.FieldTAVG); got != 1 {
		t.Errorf("Count(TAVG) = %d, want 1", got)
	}

	obs := series.Observations()
	first := obs[0]
	if first.Date != time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("first date = %v, want 1980-01-01", first.Date)
	}
	if first.TMAX == nil || *first.TMAX != 39 {
		t.Errorf("first TMAX = %v, want 39", first.TMAX)
	}
	if first.TAVG != nil {
		t.Errorf("first TAVG = %v, want nil", *first.TAVG)
	}

	if got := testutil.CollectAndCount(collector.FetchRows); got != 1 {
		t.Errorf("FetchRows observations = %d, want 1", got)
	}
}

func TestFetchSeries_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantNoField   bool
		wantTransient bool
		errorType     string
	}{
		{
			name:      "not found",
			status:    http.StatusNotFound,
			body:      "not found",
			errorType: "status",
		},
		{
			name:          "server error",
			status:        http.StatusBadGateway,
			body:          "upstream down",
			wantTransient: true,
			errorType:     "status",
		},
		{
			name:      "missing date column",
			status:    http.StatusOK,
			body:      "\"STATION\",\"TMAX\"\n\"X\",\"1\"\n",
			errorType: "parse",
		},
		{
			name:      "bad value",
			status:    http.StatusOK,
			body:      "\"DATE\",\"TMAX\"\n\"1980-01-01\",\"warm\"\n",
			errorType: "parse",
		},
		{
			name:      "duplicate date",
			status:    http.StatusOK,
			body:      "\"DATE\",\"TMAX\"\n\"1980-01-01\",\"1\"\n\"1980-01-01\",\"2\"\n",
			errorType: "parse",
		},
		{
			name:        "no temperature column",
			status:      http.StatusOK,
			body:        "\"DATE\",\"PRCP\"\n\"1980-01-01\",\"3\"\n",
			wantNoField: true,
			errorType:   "no_usable_field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client, collector := newTestClient(t, server.URL)

			series, err := client.FetchSeries(context.Background(), "USW00094728")
			if series != nil {
				t.Errorf("series = %v, want nil", series)
			}

			if tt.wantNoField {
				var noField *models.NoUsableFieldError
				if !errors.As(err, &noField) {
					t.Fatalf("error = %v, want *NoUsableFieldError", err)
				}
			} else {
				var unavailable *models.DataUnavailableError
				if !errors.As(err, &unavailable) {
					t.Fatalf("error = %v, want *DataUnavailableError", err)
				}
				if unavailable.IsTransient() != tt.wantTransient {
					t.Errorf("IsTransient() = %v, want %v", unavailable.IsTransient(), tt.wantTransient)
				}
			}

			if got := testutil.ToFloat64(collector.FetchErrorsTotal.WithLabelValues(tt.errorType)); got != 1 {
				t.Errorf("FetchErrorsTotal{%s} = %v, want 1", tt.errorType, got)
			}
		})
	}
}

func TestFetchSeries_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := newTestClient(t, url)

	_, err := client.FetchSeries(context.Background(), "USW00094728")
	var unavailable *models.DataUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want *DataUnavailableError", err)
	}
	if !unavailable.IsTransient() {
		t.Error("network failures should be transient")
	}
}

func TestFetchSeries_MalformedBodyIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "\"DATE\",\"TMAX\"\n\"1980-01-01\",\"warm\"\n")
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	_, err := client.FetchSeries(context.Background(), "USW00094728")
	var unavailable *models.DataUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want *DataUnavailableError", err)
	}
	if unavailable.Err == nil {
		t.Error("parse cause should be kept on the error")
	}
	if unavailable.IsTransient() {
		t.Errorf("malformed body reported transient: %v", err)
	}
}

func TestFetchSeries_Canceled(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		io.WriteString(w, sampleCSV)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchSeries(ctx, "USW00094728")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
	if requests != 0 {
		t.Errorf("server saw %d requests, want 0", requests)
	}
}

func TestParseSeriesCSV_TAVGOnly(t *testing.T) {
	body := strings.Join([]string{
		`"DATE","TAVG"`,
		`"2001-06-01","  215"`,
		`"2001-06-02","-9999"`,
		`"2001-06-03",""`,
	}, "\n")

	series, err := ParseSeriesCSV("ASN00066062", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseSeriesCSV() error = %v", err)
	}

	if series.HasField(models.FieldTMAX) {
		t.Error("HasField(TMAX) = true, want false")
	}
	if got := series.Count(models.FieldTAVG); got != 1 {
		t.Errorf("Count(TAVG) = %d, want 1", got)
	}
	if series.Len() != 3 {
		t.Errorf("Len() = %d, want 3", series.Len())
	}
}
