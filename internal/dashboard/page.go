package dashboard

import (
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"climatecheck/internal/aggregation"
	"climatecheck/internal/models"
)

// Map canvas size in pixels; the projection is plain equirectangular
const (
	mapWidth  = 720
	mapHeight = 360
)

// Trend chart size and plot margin in pixels
const (
	chartWidth  = 720
	chartHeight = 280
	chartMargin = 40
)

// MapPoint is a station marker on the map
type MapPoint struct {
	ID   string
	Name string
	X    float64
	Y    float64
}

// HeatCell is one month of one year; Empty cells had no readings
type HeatCell struct {
	Year  int
	Label string
	Style template.CSS
	Empty bool
}

// HeatRow is one calendar month across every grid year
type HeatRow struct {
	Month string
	Cells []HeatCell
}

// HeatMap is the table rendering of the monthly grid
type HeatMap struct {
	Title     string
	YearAxis  string
	MonthAxis string
	Years     []int
	Rows      []HeatRow
	Min       string
	Max       string
}

// TrendChart is the SVG rendering of the rolling yearly mean
type TrendChart struct {
	Title         string
	ValueAxis     string
	Width         int
	Height        int
	YearlyPoints  string
	RollingPoints string
	FirstYear     int
	LastYear      int
	Min           string
	Max           string
}

// Page is everything the dashboard template needs.
// Its state only changes through Next, so a page can never show
// an analysis for a station that was not selected.
type Page struct {
	State      State
	MapWidth   int
	MapHeight  int
	Stations   []MapPoint
	Selected   *models.StationRecord
	RawDataURL string
	Field      models.Field
	HeatMap    *HeatMap
	Trend      *TrendChart
	Error      string
}

// NewPage returns an idle page showing the given stations on the map
func NewPage(stations []models.StationRecord) *Page {
	p := &Page{
		State:     Idle,
		MapWidth:  mapWidth,
		MapHeight: mapHeight,
		Stations:  make([]MapPoint, 0, len(stations)),
	}
	for _, s := range stations {
		x, y := project(s.Latitude, s.Longitude)
		p.Stations = append(p.Stations, MapPoint{ID: s.ID, Name: s.Name, X: x, Y: y})
	}
	return p
}

func project(lat, lon float64) (float64, float64) {
	x := (lon + 180) / 360 * mapWidth
	y := (90 - lat) / 180 * mapHeight
	return math.Round(x*10) / 10, math.Round(y*10) / 10
}

func (p *Page) transition(e Event) error {
	next, err := Next(p.State, e)
	if err != nil {
		return err
	}
	p.State = next
	return nil
}

// Select marks station as the current selection and clears any earlier analysis
func (p *Page) Select(station models.StationRecord, rawDataURL string) error {
	if err := p.transition(SelectStation); err != nil {
		return err
	}
	p.Selected = &station
	p.RawDataURL = rawDataURL
	p.HeatMap = nil
	p.Trend = nil
	p.Error = ""
	return nil
}

// Start moves the page into the running state
func (p *Page) Start() error {
	return p.transition(RunAnalysis)
}

// Complete attaches both charts built from result
func (p *Page) Complete(result *aggregation.Result) error {
	if err := p.transition(AnalysisSucceeded); err != nil {
		return err
	}
	p.Field = result.Field
	p.HeatMap = buildHeatMap(result)
	p.Trend = buildTrendChart(result)
	return nil
}

// Fail records why the analysis could not be shown
func (p *Page) Fail(cause error) error {
	if err := p.transition(AnalysisErrored); err != nil {
		return err
	}
	p.Error = cause.Error()
	return nil
}

// SelectionText is the prompt or the current selection
func (p *Page) SelectionText() string {
	if p.Selected == nil {
		return "Select a point on the map to get started"
	}
	return fmt.Sprintf("You have selected %s, %s", p.Selected.Name, p.Selected.ID)
}

// RunLabel is the analysis button caption, empty until a station is selected
func (p *Page) RunLabel() string {
	if p.Selected == nil {
		return ""
	}
	return "Run analysis for " + p.Selected.Name
}

func buildHeatMap(result *aggregation.Result) *HeatMap {
	grid := result.Grid
	hm := &HeatMap{
		Title:     result.Labels.HeatMapTitle,
		YearAxis:  result.Labels.YearAxis,
		MonthAxis: result.Labels.MonthAxis,
		Years:     grid.Years,
		Rows:      make([]HeatRow, 0, 12),
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range grid.Cells {
		lo = math.Min(lo, c.Mean)
		hi = math.Max(hi, c.Mean)
	}
	if len(grid.Cells) > 0 {
		hm.Min = fmt.Sprintf("%.1f", lo)
		hm.Max = fmt.Sprintf("%.1f", hi)
	}

	for m, row := range grid.Matrix() {
		hr := HeatRow{
			Month: time.Month(m + 1).String()[:3],
			Cells: make([]HeatCell, len(row)),
		}
		for i, v := range row {
			cell := HeatCell{Year: grid.Years[i]}
			if v == nil {
				cell.Empty = true
			} else {
				cell.Label = fmt.Sprintf("%.1f", *v)
				cell.Style = template.CSS("background-color:" + ColorScale(*v, lo, hi))
			}
			hr.Cells[i] = cell
		}
		hm.Rows = append(hm.Rows, hr)
	}

	return hm
}

type rgb struct{ r, g, b float64 }

// Diverging blue-white-red scale
var (
	coldColor = rgb{49, 54, 149}
	midColor  = rgb{247, 247, 247}
	hotColor  = rgb{165, 0, 38}
)

// ColorScale maps v in [lo, hi] onto a diverging blue-white-red hex color.
// A degenerate range maps everything to the midpoint.
func ColorScale(v, lo, hi float64) string {
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	t = math.Max(0, math.Min(1, t))

	from, to, f := coldColor, midColor, t*2
	if t > 0.5 {
		from, to, f = midColor, hotColor, (t-0.5)*2
	}

	mix := func(a, b float64) int { return int(math.Round(a + (b-a)*f)) }
	return fmt.Sprintf("#%02x%02x%02x", mix(from.r, to.r), mix(from.g, to.g), mix(from.b, to.b))
}

func buildTrendChart(result *aggregation.Result) *TrendChart {
	points := result.Trend.Points
	chart := &TrendChart{
		Title:     result.Labels.TrendTitle,
		ValueAxis: result.Labels.ValueAxis,
		Width:     chartWidth,
		Height:    chartHeight,
	}
	if len(points) == 0 {
		return chart
	}

	chart.FirstYear = points[0].Year
	chart.LastYear = points[len(points)-1].Year

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Mean)
		hi = math.Max(hi, p.Mean)
	}
	chart.Min = fmt.Sprintf("%.1f", lo)
	chart.Max = fmt.Sprintf("%.1f", hi)

	span := float64(chart.LastYear - chart.FirstYear)
	x := func(year int) float64 {
		if span == 0 {
			return chartWidth / 2
		}
		return chartMargin + float64(year-chart.FirstYear)/span*(chartWidth-2*chartMargin)
	}
	y := func(v float64) float64 {
		if hi == lo {
			return chartHeight / 2
		}
		return chartHeight - chartMargin - (v-lo)/(hi-lo)*(chartHeight-2*chartMargin)
	}

	var yearly, rolling []string
	for _, p := range points {
		yearly = append(yearly, fmt.Sprintf("%.1f,%.1f", x(p.Year), y(p.Mean)))
		if p.Rolling != nil {
			rolling = append(rolling, fmt.Sprintf("%.1f,%.1f", x(p.Year), y(*p.Rolling)))
		}
	}
	chart.YearlyPoints = strings.Join(yearly, " ")
	chart.RollingPoints = strings.Join(rolling, " ")

	return chart
}
