package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	"climatecheck/internal/aggregation"
	"climatecheck/internal/models"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{Idle, SelectStation, StationSelected, false},
		{Idle, RunAnalysis, Idle, true},
		{Idle, AnalysisSucceeded, Idle, true},
		{StationSelected, SelectStation, StationSelected, false},
		{StationSelected, RunAnalysis, AnalysisRunning, false},
		{StationSelected, AnalysisErrored, StationSelected, true},
		{AnalysisRunning, AnalysisSucceeded, AnalysisComplete, false},
		{AnalysisRunning, AnalysisErrored, AnalysisFailed, false},
		{AnalysisRunning, SelectStation, AnalysisRunning, true},
		{AnalysisRunning, RunAnalysis, AnalysisRunning, true},
		{AnalysisComplete, SelectStation, StationSelected, false},
		{AnalysisComplete, RunAnalysis, AnalysisRunning, false},
		{AnalysisFailed, RunAnalysis, AnalysisRunning, false},
		{AnalysisFailed, AnalysisSucceeded, AnalysisFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Next() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
			if tt.wantErr {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Errorf("error = %T, want *TransitionError", err)
				}
			}
		})
	}
}

func tenths(v int) *int { return &v }

func sampleResult(t *testing.T) *aggregation.Result {
	t.Helper()

	var obs []models.DailyObservation
	for year := 1979; year <= 1986; year++ {
		for _, m := range []time.Month{time.January, time.July} {
			obs = append(obs, models.DailyObservation{
				Date: time.Date(year, m, 15, 0, 0, 0, 0, time.UTC),
				TMAX: tenths(int(m)*20 + year - 1979),
			})
		}
	}

	series, err := models.NewStationSeries("USW00094728", []models.Field{models.FieldTMAX}, obs)
	if err != nil {
		t.Fatalf("NewStationSeries() error = %v", err)
	}
	result, err := aggregation.Aggregate(series)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	return result
}

var nyc = models.StationRecord{ID: "USW00094728", Name: "NEW YORK CNTRL PK TWR", Latitude: 40.7789, Longitude: -73.9692}

func TestPage_Flow(t *testing.T) {
	page := NewPage([]models.StationRecord{nyc})

	if page.SelectionText() != "Select a point on the map to get started" {
		t.Errorf("SelectionText() = %q", page.SelectionText())
	}
	if page.RunLabel() != "" {
		t.Errorf("RunLabel() = %q, want empty before selection", page.RunLabel())
	}

	// Analysis cannot start before a station is selected.
	if err := page.Start(); err == nil {
		t.Fatal("Start() from idle should fail")
	}

	if err := page.Select(nyc, "https://example.test/USW00094728.csv"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got, want := page.SelectionText(), "You have selected NEW YORK CNTRL PK TWR, USW00094728"; got != want {
		t.Errorf("SelectionText() = %q, want %q", got, want)
	}
	if got, want := page.RunLabel(), "Run analysis for NEW YORK CNTRL PK TWR"; got != want {
		t.Errorf("RunLabel() = %q, want %q", got, want)
	}

	if err := page.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := page.Complete(sampleResult(t)); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if page.State != AnalysisComplete {
		t.Errorf("State = %v, want %v", page.State, AnalysisComplete)
	}

	if page.HeatMap == nil || page.Trend == nil {
		t.Fatal("completed page should carry both charts")
	}

	// Selecting again clears the charts.
	if err := page.Select(nyc, ""); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if page.HeatMap != nil || page.Trend != nil {
		t.Error("Select() should clear the previous analysis")
	}
}

func TestPage_Fail(t *testing.T) {
	page := NewPage(nil)
	page.Select(nyc, "")
	page.Start()

	cause := &models.DataUnavailableError{Source: "noaa", Reason: "unexpected status 404"}
	if err := page.Fail(cause); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if page.State != AnalysisFailed {
		t.Errorf("State = %v, want %v", page.State, AnalysisFailed)
	}
	if page.Error != cause.Error() {
		t.Errorf("Error = %q, want %q", page.Error, cause.Error())
	}

	// A failed analysis can be run again.
	if err := page.Start(); err != nil {
		t.Errorf("Start() after failure error = %v", err)
	}
}

func TestBuildHeatMap(t *testing.T) {
	hm := buildHeatMap(sampleResult(t))

	if len(hm.Rows) != 12 {
		t.Fatalf("rows = %d, want 12", len(hm.Rows))
	}
	if hm.Years[0] != 1980 || hm.Years[len(hm.Years)-1] != 1986 {
		t.Errorf("Years = %v, want 1980..1986", hm.Years)
	}
	if hm.Rows[0].Month != "Jan" || hm.Rows[11].Month != "Dec" {
		t.Errorf("months = %s..%s, want Jan..Dec", hm.Rows[0].Month, hm.Rows[11].Month)
	}

	jan := hm.Rows[0].Cells[0]
	if jan.Empty || jan.Label != "2.1" {
		t.Errorf("Jan 1980 = %+v, want label 2.1", jan)
	}
	if !hm.Rows[1].Cells[0].Empty {
		t.Error("Feb 1980 has no readings and should be empty")
	}
	if hm.Rows[1].Cells[0].Label != "" {
		t.Error("empty cells must not carry a value")
	}
}

func TestColorScale(t *testing.T) {
	tests := []struct {
		v, lo, hi float64
		want      string
	}{
		{0, 0, 10, "#313695"},
		{10, 0, 10, "#a50026"},
		{5, 0, 10, "#f7f7f7"},
		{-5, 0, 10, "#313695"},
		{3, 3, 3, "#f7f7f7"},
	}

	for _, tt := range tests {
		if got := ColorScale(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("ColorScale(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestBuildTrendChart(t *testing.T) {
	chart := buildTrendChart(sampleResult(t))

	if chart.FirstYear != 1979 || chart.LastYear != 1986 {
		t.Errorf("years = %d..%d, want 1979..1986", chart.FirstYear, chart.LastYear)
	}
	if n := len(strings.Fields(chart.YearlyPoints)); n != 8 {
		t.Errorf("yearly points = %d, want 8", n)
	}
	// The first four years have no full window.
	if n := len(strings.Fields(chart.RollingPoints)); n != 4 {
		t.Errorf("rolling points = %d, want 4", n)
	}
}

func TestRenderer_Render(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	tests := []struct {
		name  string
		build func(t *testing.T) *Page
		want  []string
		avoid []string
	}{
		{
			name:  "idle",
			build: func(t *testing.T) *Page { return NewPage([]models.StationRecord{nyc}) },
			want: []string{
				"Select a point on the map to get started",
				`href="?station=USW00094728"`,
				`data-state="idle"`,
			},
			avoid: []string{"Run analysis for", "heat-map\">"},
		},
		{
			name: "selected",
			build: func(t *testing.T) *Page {
				p := NewPage([]models.StationRecord{nyc})
				p.Select(nyc, "https://example.test/USW00094728.csv")
				return p
			},
			want: []string{
				"You have selected NEW YORK CNTRL PK TWR, USW00094728",
				`href="https://example.test/USW00094728.csv"`,
				"Run analysis for NEW YORK CNTRL PK TWR",
				`class="selected"`,
			},
		},
		{
			name: "complete",
			build: func(t *testing.T) *Page {
				p := NewPage([]models.StationRecord{nyc})
				p.Select(nyc, "https://example.test/USW00094728.csv")
				p.Start()
				p.Complete(sampleResult(t))
				return p
			},
			want: []string{
				"Monthly mean TMAX (°C) since 1980",
				"5-year rolling mean of yearly TMAX (°C)",
				`class="rolling"`,
				"background-color:#",
				`data-state="analysis-complete"`,
			},
			avoid: []string{"ZgotmplZ"},
		},
		{
			name: "failed",
			build: func(t *testing.T) *Page {
				p := NewPage(nil)
				p.Select(nyc, "")
				p.Start()
				p.Fail(&models.NoUsableFieldError{StationID: nyc.ID})
				return p
			},
			want: []string{"Analysis failed: station USW00094728 has neither TMAX nor TAVG data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := renderer.Render(tt.build(t))
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			out := string(body)
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q", s)
				}
			}
			for _, s := range tt.avoid {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q", s)
				}
			}
		})
	}
}
